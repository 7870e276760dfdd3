package contract

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/socinabox/modwatch/schema"
)

// Default values for configuration.
const (
	DefaultWindow       = "24 hours"
	DefaultTimeout      = 30 * time.Second
	DefaultSchedule     = "@hourly"
	DefaultJiraProject  = "SOC"
	DefaultJiraType     = "Task"
	DefaultJiraPriority = "High"
	NoJiraPriority      = "none" // Omits the priority field from filed issues
)

// DefaultJiraLabels are always attached to filed issues, next to the module category.
var DefaultJiraLabels = []string{"metasploit", "security"}

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// JiraConfig holds the issue tracker settings.
type JiraConfig struct {
	BaseURL   string
	Email     string
	Token     string // Please use env var as this is plaintext
	Project   string
	IssueType string
	Priority  string
	Labels    []string
}

// Config holds the runtime configuration for a scan.
// This struct is the "final, validated" config.
type Config struct {
	Repo        string // owner/name
	APIURL      string
	GitHubToken string // Please use env var as this is plaintext
	Window      time.Duration
	Tracked     []schema.TrackedDirectory
	Extensions  []string
	Timeout     time.Duration

	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	LogLevel   string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	FileIssues bool
	FileKinds  []schema.ChangeKind
	Jira       JiraConfig

	Schedule    string // Cron expression for watch
	MetricsAddr string // Listen address for watch metrics, empty to disable
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Source ---
	Repo        string `mapstructure:"repo"`
	APIURL      string `mapstructure:"api-url"`
	GitHubToken string `mapstructure:"github-token"`
	Window      string `mapstructure:"window"`
	Track       string `mapstructure:"track"`
	Extensions  string `mapstructure:"extensions"`
	Timeout     string `mapstructure:"timeout"`

	// --- Output ---
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	LogLevel   string `mapstructure:"log-level"`

	// --- Storage ---
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`

	// --- Issue filing ---
	FileIssues    bool   `mapstructure:"file-issues"`
	FileKinds     string `mapstructure:"file-kinds"`
	JiraURL       string `mapstructure:"jira-url"`
	JiraEmail     string `mapstructure:"jira-email"`
	JiraToken     string `mapstructure:"jira-token"`
	JiraProject   string `mapstructure:"jira-project"`
	JiraIssueType string `mapstructure:"jira-issue-type"`
	JiraPriority  string `mapstructure:"jira-priority"`
	JiraLabels    string `mapstructure:"jira-labels"`

	// --- Fields from watchCmd.Flags() ---
	Schedule    string `mapstructure:"schedule"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Tracked = slices.Clone(c.Tracked)
	clone.Extensions = slices.Clone(c.Extensions)
	clone.FileKinds = slices.Clone(c.FileKinds)
	clone.Jira.Labels = slices.Clone(c.Jira.Labels)
	return &clone
}

// ShouldFile reports whether records of the given kind are filed as issues.
func (c *Config) ShouldFile(kind schema.ChangeKind) bool {
	return c.FileIssues && slices.Contains(c.FileKinds, kind)
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := processSource(cfg, input); err != nil {
		return err
	}
	if err := processOutput(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processFiling(cfg, input); err != nil {
		return err
	}
	return processWatch(cfg, input)
}

// processSource validates the repository, window and tracked directories.
func processSource(cfg *Config, input *ConfigRawInput) error {
	cfg.Repo = strings.Trim(strings.TrimSpace(input.Repo), "/")
	if cfg.Repo == "" {
		cfg.Repo = schema.DefaultRepo
	}
	parts := strings.Split(cfg.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repo '%s'. must be owner/name", input.Repo)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(input.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = schema.DefaultAPIURL
	}
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api-url '%s'", input.APIURL)
	}

	// An empty token is not a config error: the monitor reports it as an authentication failure.
	cfg.GitHubToken = strings.TrimSpace(input.GitHubToken)

	windowStr := input.Window
	if strings.TrimSpace(windowStr) == "" {
		windowStr = DefaultWindow
	}
	window, err := ParseLookbackDuration(windowStr)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	cfg.Window = window

	tracked, err := ParseTrackedDirectories(input.Track)
	if err != nil {
		return err
	}
	cfg.Tracked = tracked

	cfg.Extensions = ParseExtensions(input.Extensions)

	cfg.Timeout = DefaultTimeout
	if strings.TrimSpace(input.Timeout) != "" {
		timeout, err := time.ParseDuration(strings.TrimSpace(input.Timeout))
		if err != nil || timeout <= 0 {
			return fmt.Errorf("invalid timeout '%s'. must be a positive duration like 30s", input.Timeout)
		}
		cfg.Timeout = timeout
	}
	return nil
}

// ParseTrackedDirectories parses a comma-separated prefix list. An empty list yields the defaults.
// Categories must be unique and no prefix may contain another.
func ParseTrackedDirectories(s string) ([]schema.TrackedDirectory, error) {
	prefixes := SplitList(s)
	if len(prefixes) == 0 {
		return schema.DefaultTrackedDirectories(), nil
	}

	dirs := make([]schema.TrackedDirectory, 0, len(prefixes))
	seen := make(map[string]string, len(prefixes))
	for _, p := range prefixes {
		d := schema.NewTrackedDirectory(p)
		if d.Prefix == "" {
			return nil, fmt.Errorf("invalid tracked directory '%s'", p)
		}
		if other, ok := seen[d.Category]; ok {
			return nil, fmt.Errorf("tracked directories '%s' and '%s' share category '%s'", other, d.Prefix, d.Category)
		}
		for _, existing := range dirs {
			if existing.Matches(d.Prefix) || d.Matches(existing.Prefix) {
				return nil, fmt.Errorf("tracked directories '%s' and '%s' overlap", existing.Prefix, d.Prefix)
			}
		}
		seen[d.Category] = d.Prefix
		dirs = append(dirs, d)
	}
	return dirs, nil
}

// ParseExtensions parses a comma-separated extension list, normalizing to lower case with a leading dot.
// An empty value yields the defaults, and "*" accepts every file.
func ParseExtensions(s string) []string {
	parts := SplitList(s)
	if len(parts) == 0 {
		return slices.Clone(schema.DefaultExtensions)
	}
	if len(parts) == 1 && parts[0] == "*" {
		return nil
	}
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		e := strings.ToLower(p)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if !slices.Contains(exts, e) {
			exts = append(exts, e)
		}
	}
	return exts
}

// processOutput validates the output format, colors and log level.
func processOutput(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	if cfg.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", cfg.Width)
	}

	colorStr := input.Color
	if colorStr == "" {
		colorStr = "yes"
	}
	colors, err := ParseBoolString(colorStr)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(input.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = zerolog.InfoLevel.String()
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level '%s'", input.LogLevel)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("cache-db-connect: %w", err)
	}

	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("history-db-connect: %w", err)
	}

	// For SQLite, resolve to actual file paths to catch default path conflicts
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		historyPath := cfg.HistoryDBConnect
		if historyPath == "" {
			historyPath = GetHistoryDBFilePath()
		}
		if cachePath == historyPath {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}
	return nil
}

// processFiling validates the issue tracker settings when filing is enabled.
func processFiling(cfg *Config, input *ConfigRawInput) error {
	cfg.FileIssues = input.FileIssues

	kinds := SplitList(input.FileKinds)
	if len(kinds) == 0 {
		kinds = []string{string(schema.AddedChange), string(schema.ModifiedChange)}
	}
	cfg.FileKinds = cfg.FileKinds[:0]
	for _, k := range kinds {
		kind := schema.ChangeKind(strings.ToLower(k))
		if _, ok := schema.ValidChangeKinds[kind]; !ok {
			return fmt.Errorf("invalid file kind '%s'. must be added, modified, removed", k)
		}
		if !slices.Contains(cfg.FileKinds, kind) {
			cfg.FileKinds = append(cfg.FileKinds, kind)
		}
	}

	cfg.Jira = JiraConfig{
		BaseURL:   strings.TrimRight(strings.TrimSpace(input.JiraURL), "/"),
		Email:     strings.TrimSpace(input.JiraEmail),
		Token:     strings.TrimSpace(input.JiraToken),
		Project:   strings.TrimSpace(input.JiraProject),
		IssueType: strings.TrimSpace(input.JiraIssueType),
		Priority:  strings.TrimSpace(input.JiraPriority),
		Labels:    append(slices.Clone(DefaultJiraLabels), SplitList(input.JiraLabels)...),
	}
	if cfg.Jira.Project == "" {
		cfg.Jira.Project = DefaultJiraProject
	}
	if cfg.Jira.IssueType == "" {
		cfg.Jira.IssueType = DefaultJiraType
	}
	switch strings.ToLower(cfg.Jira.Priority) {
	case "":
		cfg.Jira.Priority = DefaultJiraPriority
	case NoJiraPriority:
		cfg.Jira.Priority = ""
	}
	for _, l := range cfg.Jira.Labels {
		if strings.ContainsAny(l, " \t") {
			return fmt.Errorf("jira label '%s' cannot contain whitespace", l)
		}
	}

	if !cfg.FileIssues {
		return nil
	}
	var missing []string
	if cfg.Jira.BaseURL == "" {
		missing = append(missing, "jira-url")
	}
	if cfg.Jira.Email == "" {
		missing = append(missing, "jira-email")
	}
	if cfg.Jira.Token == "" {
		missing = append(missing, "jira-token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("--file-issues requires %s", strings.Join(missing, ", "))
	}
	if u, err := url.Parse(cfg.Jira.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid jira-url '%s'", input.JiraURL)
	}
	return nil
}

// processWatch validates the cron schedule used by the watch command.
func processWatch(cfg *Config, input *ConfigRawInput) error {
	cfg.Schedule = strings.TrimSpace(input.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule '%s': %w", input.Schedule, err)
	}
	cfg.MetricsAddr = strings.TrimSpace(input.MetricsAddr)
	return nil
}
