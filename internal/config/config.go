package config

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/nao1215/ringscan/pkg/scan"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ringscan"

	// DefaultBatchSize is the number of traces replayed concurrently.
	// Sessions are independent, so this only bounds CPU and memory use.
	DefaultBatchSize = 4

	// DefaultLogPrecision is the number of decimals kept for float log
	// attributes. Four decimals is a tenth of a millimeter.
	DefaultLogPrecision = 4

	// maxLogPrecision is the most decimals a float64 carries meaningfully.
	maxLogPrecision = 15
)

// Config holds all options of a ringscan run.
// It is populated from CLI flags and the configuration file, and passed
// through the application explicitly.
type Config struct {
	// Verbose enables debug logging. When false, only warnings and errors
	// are logged.
	Verbose bool

	// JSONLog switches the log output from text to JSON lines.
	JSONLog bool

	// LogPrecision is the number of decimals kept for float log attributes.
	LogPrecision int

	// BatchSize is the number of traces replayed concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .ringscan is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// File holds the loaded configuration file, if any.
	File *File

	// Scan is the session configuration used when the file does not
	// override it for a trace.
	Scan scan.Config

	// AllowDuplicates is the default capture mode for trace events that do
	// not set it.
	AllowDuplicates bool

	// ContinueOnError keeps replaying remaining traces after one fails.
	ContinueOnError bool

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport selects GitHub Flavored Markdown report output.
	MarkdownReport bool

	// ReportFile is the output file for the report. Stdout when empty.
	ReportFile string

	// Traces is the list of trace files to replay.
	Traces []string

	// DBDir is the directory holding the SQLite history database.
	// Defaults to the XDG data directory (~/.local/share/ringscan on Linux).
	DBDir string

	// SaveToDB stores replay results in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		LogPrecision: DefaultLogPrecision,
		BatchSize:    DefaultBatchSize,
		Scan:         scan.DefaultConfig(),
		DBDir:        XDGDataDir(),
		SaveToDB:     true,
	}
}

// XDGDataDir returns the XDG data directory for ringscan.
// On Linux: ~/.local/share/ringscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ringscan.
// On Linux: ~/.config/ringscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid for a replay run.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Traces) == 0 {
		return ErrNoTrace
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.LogPrecision < 0 || c.LogPrecision > maxLogPrecision {
		return ErrInvalidLogPrecision
	}

	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("session settings: %w", err)
	}

	return nil
}

// SessionConfig returns the session configuration and default capture mode
// for the named trace, applying configuration file overrides when loaded.
func (c *Config) SessionConfig(traceName string) (scan.Config, bool, error) {
	if c.File == nil {
		return c.Scan, c.AllowDuplicates, nil
	}

	profile := c.File.ProfileFor(traceName)
	cfg, err := profile.Apply(c.Scan)
	if err != nil {
		return scan.Config{}, false, fmt.Errorf("trace %q: %w", traceName, err)
	}
	allow := c.AllowDuplicates
	if profile.Capture.AllowDuplicates != nil {
		allow = *profile.Capture.AllowDuplicates
	}
	return cfg, allow, nil
}
