package schema

// Custom string types for type safety.
type (
	// ChangeKind represents how a tracked file changed inside the poll window.
	ChangeKind string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and history.
	DatabaseBackend string

	// RunStatus represents the final state of a recorded scan.
	RunStatus string
)

// All change kinds supported.
const (
	AddedChange    ChangeKind = "added"
	ModifiedChange ChangeKind = "modified"
	RemovedChange  ChangeKind = "removed"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All run statuses recorded in history.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// AllChangeKinds lists the change kinds in display order.
var AllChangeKinds = []ChangeKind{AddedChange, ModifiedChange, RemovedChange}

// ValidChangeKinds lists all valid change kinds.
var ValidChangeKinds = map[ChangeKind]struct{}{
	AddedChange:    {},
	ModifiedChange: {},
	RemovedChange:  {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// Defaults for the monitored repository.
const (
	DefaultRepo   = "rapid7/metasploit-framework"
	DefaultAPIURL = "https://api.github.com"
)

// DefaultTrackedPrefixes are the module directories watched when none are configured.
var DefaultTrackedPrefixes = []string{
	"modules/auxiliary",
	"modules/exploits",
	"modules/post",
}

// DefaultExtensions are the module file extensions reported when none are configured.
var DefaultExtensions = []string{".rb", ".md"}
