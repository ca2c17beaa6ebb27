// Package constants provides shared constants for the sprint-budget application.
package constants

// Planning constants
const (
	// HoursPerDay is the number of billable hours per team member per working day
	HoursPerDay = 8

	// MaxIterations caps the ledger length for manual additions, imports and auto-fill
	MaxIterations = 100

	// DefaultReconcileThreshold is the ledger length difference above which a
	// parameter change regenerates the ledger instead of extending it
	DefaultReconcileThreshold = 3

	// DefaultCurrency is used when parameters do not name one
	DefaultCurrency = "$"

	// DecimalPlaces is the precision for currency rounding (2 decimal places)
	DecimalPlaces = 2

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Default budget parameters used when no configuration overrides them
const (
	DefaultCostPerHour             = 50.0
	DefaultBudgetSize              = 100000.0
	DefaultTeamSize                = 5
	DefaultWorkingDaysPerIteration = 10.0
)

// Series names selectable for display and persisted with snapshots
const (
	SeriesIterationCost      = "iterationCost"
	SeriesCumulativeStandard = "cumulativeStandard"
	SeriesCumulativeActual   = "cumulativeActual"
	SeriesBudget             = "budget"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment variable overrides, e.g. SPRINT_BUDGET_AUTH_PASSWORD
	EnvPrefix = "SPRINT_BUDGET"

	// AppDirName is the directory created under the user config dir for device storage
	AppDirName = "sprint-budget"

	// SnapshotsFile holds locally saved snapshots
	SnapshotsFile = "snapshots.json"

	// SessionFile holds the persisted authentication session
	SessionFile = "session.toml"
)

// Persistence constants
const (
	// DefaultRetentionDays is the age after which remote snapshots are removed by cleanup
	DefaultRetentionDays = 30

	// RemoteKindNone disables remote persistence
	RemoteKindNone = "none"

	// RemoteKindSQL stores snapshots directly in a SQL database
	RemoteKindSQL = "sql"

	// RemoteKindHTTP stores snapshots through the server's snapshot API
	RemoteKindHTTP = "http"

	// DriverPostgres selects the lib/pq driver
	DriverPostgres = "postgres"

	// DriverSQLite selects the modernc.org/sqlite driver
	DriverSQLite = "sqlite"
)

// Authentication constants
const (
	// AuthModeStatic compares against configured credentials
	AuthModeStatic = "static"

	// AuthModeRemote delegates credential checks to an identity endpoint
	AuthModeRemote = "remote"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for CSV files (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)
