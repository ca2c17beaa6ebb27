package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/iwvelando/sprint-budget/internal/auth"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/spf13/cobra"
)

// authenticator builds the credential check selected by auth.mode.
func (c *cli) authenticator() auth.Authenticator {
	if c.conf.Auth.Mode == constants.AuthModeRemote {
		return auth.NewRemoteAuthenticator(c.conf.Auth.IdentityURL, nil)
	}
	return auth.NewStaticAuthenticator(c.conf.Auth.Username, c.conf.Auth.Password)
}

// gate restores the device session from the storage directory.
func (c *cli) gate() (*auth.Gate, error) {
	sessions := auth.NewSessionFile(filepath.Join(c.conf.StorageDir(), constants.SessionFile))
	return auth.NewGate(c.authenticator(), sessions, c.logger)
}

// promptCredentials asks for whatever the flags did not supply.
func promptCredentials(username, password *string) error {
	var fields []huh.Field
	if *username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(username))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password))
	}
	if len(fields) == 0 {
		return nil
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("login aborted")
		}
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	return nil
}

func newLoginCmd(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to enable remote snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := promptCredentials(&username, &password); err != nil {
				return err
			}
			gate, err := c.gate()
			if err != nil {
				return err
			}
			session, err := gate.Login(cmd.Context(), username, password)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredentials) {
					return errors.New("login failed: invalid username or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.OwnerID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, err := c.gate()
			if err != nil {
				return err
			}
			if err := gate.Logout(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, err := c.gate()
			if err != nil {
				return err
			}
			session, ok := gate.Session()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), auth.Anonymous.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) since %s\n",
				session.OwnerID, auth.Authenticated.String(), session.IssuedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}
