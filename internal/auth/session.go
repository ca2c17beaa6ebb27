package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SessionFile persists a session as TOML on the device.
type SessionFile struct {
	path string
}

// NewSessionFile returns a session file at path.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Path is the backing file.
func (f *SessionFile) Path() string {
	return f.path
}

// Load reads the saved session. ok is false when none is saved.
func (f *SessionFile) Load() (s Session, ok bool, err error) {
	if _, err := toml.DecodeFile(f.path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("failed to read session %s: %w", f.path, err)
	}
	if s.Token == "" || s.OwnerID == "" {
		return Session{}, false, nil
	}
	return s, true, nil
}

// Save writes the session, readable only by the current user.
func (f *SessionFile) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(s); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	return file.Close()
}

// Clear removes the saved session.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
