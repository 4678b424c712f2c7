package dupeprune

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "DUPEPRUNE"

// Config represents the dupeprune configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Default fingerprint algorithm
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // human, json, yaml, msgpack, fdupes
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug string // comma-separated debug flags
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers   int     // concurrently open files while hashing (default: 4)
	HashBuffer    string  // read buffer for hashing and comparison (default: "2M")
	DeleteWorkers int     // groups executed concurrently (default: 2)
	DeleteRate    float64 // deletions per second, 0 is unlimited
}

// ScanConfig represents directory walk configuration
type ScanConfig struct {
	Exclude      []string // regular expressions, one key per pattern
	IgnoreFile   string   // file of further patterns, missing is fine
	MinSize      string   // files smaller than this are not considered
	IncludeEmpty bool     // consider zero-byte files
}

// ExecuteConfig represents deletion configuration
type ExecuteConfig struct {
	DryRun  bool   // report only, never delete
	Journal string // append-only deletion journal, empty disables it
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Performance *PerformanceConfig
	Scan        *ScanConfig
	Execute     *ExecuteConfig
}

type configKey struct {
	section string
	key     string
}

// defaultValues lists every key written by config init, in file order
var defaultValues = []struct {
	configKey
	value string
}{
	{configKey{"filehash", "default"}, DefaultHashAlgorithm},
	{configKey{"output", "format"}, FormatHuman},
	{configKey{"verbose", "level"}, "0"},
	{configKey{"verbose", "debug"}, ""},
	{configKey{"performance", "hash_workers"}, strconv.Itoa(DefaultHashWorkers)},
	{configKey{"performance", "hash_buffer"}, DefaultHashBuffer},
	{configKey{"performance", "delete_workers"}, strconv.Itoa(DefaultDeleteWorkers)},
	{configKey{"performance", "delete_rate"}, "0"},
	{configKey{"scan", "ignore_file"}, ""},
	{configKey{"scan", "min_size"}, "0"},
	{configKey{"scan", "include_empty"}, "true"},
	{configKey{"execute", "dry_run"}, "false"},
	{configKey{"execute", "journal"}, ""},
}

// overrideKeys maps "key:value" override names to their config location
var overrideKeys = map[string]configKey{
	"default":        {"filehash", "default"},
	"hash":           {"filehash", "default"},
	"format":         {"output", "format"},
	"level":          {"verbose", "level"},
	"debug":          {"verbose", "debug"},
	"hash_workers":   {"performance", "hash_workers"},
	"hash_buffer":    {"performance", "hash_buffer"},
	"delete_workers": {"performance", "delete_workers"},
	"delete_rate":    {"performance", "delete_rate"},
	"exclude":        {"scan", "exclude"},
	"ignore_file":    {"scan", "ignore_file"},
	"min_size":       {"scan", "min_size"},
	"include_empty":  {"scan", "include_empty"},
	"dry_run":        {"execute", "dry_run"},
	"journal":        {"execute", "journal"},
}

var loadOptions = ini.LoadOptions{AllowShadows: true}

// DefaultConfigPath returns $XDG_CONFIG_HOME/dupeprune/config, falling back
// to ~/.config/dupeprune/config
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "dupeprune", "config"), nil
}

// LoadConfig loads configuration from configPath. A missing file yields the
// defaults in memory; nothing is written.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg.ini = ini.Empty(loadOptions)
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	iniFile, err := ini.LoadSources(loadOptions, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile
	return cfg, nil
}

// InitConfig writes a default config file, refusing to overwrite one
func InitConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return nil, fmt.Errorf("config file %s already exists", configPath)
	}

	cfg := &Config{
		configPath: configPath,
		ini:        ini.Empty(loadOptions),
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set default config: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	for _, d := range defaultValues {
		if _, err := c.ini.Section(d.section).NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// Path returns the file the configuration was loaded from or will be saved to
func (c *Config) Path() string {
	return c.configPath
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	return &HashConfig{
		Default: c.stringValue("filehash", "default", DefaultHashAlgorithm),
	}
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	return &OutputConfig{
		Format: c.stringValue("output", "format", FormatHuman),
	}
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{
		Debug: c.stringValue("verbose", "debug", ""),
	}
	if key := c.key("verbose", "level"); key != nil {
		if level, err := key.Int(); err == nil {
			verboseConfig.Level = level
		}
	}
	return verboseConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers:   DefaultHashWorkers,
		HashBuffer:    c.stringValue("performance", "hash_buffer", DefaultHashBuffer),
		DeleteWorkers: DefaultDeleteWorkers,
	}

	if key := c.key("performance", "hash_workers"); key != nil {
		if workers, err := key.Int(); err == nil {
			performanceConfig.HashWorkers = workers
		}
	}
	if key := c.key("performance", "delete_workers"); key != nil {
		if workers, err := key.Int(); err == nil {
			performanceConfig.DeleteWorkers = workers
		}
	}
	if key := c.key("performance", "delete_rate"); key != nil {
		if rate, err := key.Float64(); err == nil {
			performanceConfig.DeleteRate = rate
		}
	}

	return performanceConfig
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{
		IgnoreFile:   c.stringValue("scan", "ignore_file", ""),
		MinSize:      c.stringValue("scan", "min_size", "0"),
		IncludeEmpty: true,
	}

	if key := c.key("scan", "exclude"); key != nil {
		for _, pattern := range key.ValueWithShadows() {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				scanConfig.Exclude = append(scanConfig.Exclude, pattern)
			}
		}
	}
	if key := c.key("scan", "include_empty"); key != nil {
		if include, err := key.Bool(); err == nil {
			scanConfig.IncludeEmpty = include
		}
	}

	return scanConfig
}

// GetExecuteConfig returns the execution configuration
func (c *Config) GetExecuteConfig() *ExecuteConfig {
	executeConfig := &ExecuteConfig{
		Journal: c.stringValue("execute", "journal", ""),
	}
	if key := c.key("execute", "dry_run"); key != nil {
		if dryRun, err := key.Bool(); err == nil {
			executeConfig.DryRun = dryRun
		}
	}
	return executeConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Performance: c.GetPerformanceConfig(),
		Scan:        c.GetScanConfig(),
		Execute:     c.GetExecuteConfig(),
	}
}

func (c *Config) key(section, name string) *ini.Key {
	if !c.ini.HasSection(section) {
		return nil
	}
	s := c.ini.Section(section)
	if !s.HasKey(name) {
		return nil
	}
	return s.Key(name)
}

func (c *Config) stringValue(section, name, fallback string) string {
	if key := c.key(section, name); key != nil {
		if value := strings.TrimSpace(key.String()); value != "" {
			return value
		}
	}
	return fallback
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return c.ini.SaveTo(c.configPath)
}

// WriteTo writes the configuration in INI form
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	return c.ini.WriteTo(w)
}

// ApplyOverrides applies command-line overrides to the configuration.
// Accepts strings like "hash:sha512", "format:json", "level:2", "hash_workers:8".
// Repeated "exclude:RE" overrides accumulate.
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		loc, ok := overrideKeys[name]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: %s)", name, strings.Join(OverrideKeys(), ", "))
		}

		section := c.ini.Section(loc.section)
		if name == "exclude" && section.HasKey("exclude") {
			if err := section.Key("exclude").AddShadow(value); err != nil {
				return fmt.Errorf("failed to add exclude pattern: %w", err)
			}
			continue
		}
		section.Key(loc.key).SetValue(value)
	}

	return nil
}

// OverrideKeys returns the names accepted by ApplyOverrides, sorted
func OverrideKeys() []string {
	return slices.Sorted(maps.Keys(overrideKeys))
}

// Validate checks every configured value
func (c *Config) Validate() error {
	all := c.GetAllConfig()

	var errs []error
	errs = append(errs,
		ValidateHashAlgorithm(all.Hash.Default),
		ValidateOutputFormat(all.Output.Format),
		ValidateVerboseLevel(all.Verbose.Level),
		ValidateHashWorkers(all.Performance.HashWorkers),
		ValidateDeleteWorkers(all.Performance.DeleteWorkers),
		ValidateDeleteRate(all.Performance.DeleteRate),
		ValidateSize("hash_buffer", all.Performance.HashBuffer),
		ValidateSize("min_size", all.Scan.MinSize),
	)
	for _, key := range []configKey{{"verbose", "level"}, {"performance", "hash_workers"}, {"performance", "delete_workers"}} {
		if k := c.key(key.section, key.key); k != nil {
			if _, err := k.Int(); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s must be an integer, got: %q", key.section, key.key, k.String()))
			}
		}
	}
	for _, key := range []configKey{{"scan", "include_empty"}, {"execute", "dry_run"}} {
		if k := c.key(key.section, key.key); k != nil && k.String() != "" {
			if _, err := k.Bool(); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s must be a boolean, got: %q", key.section, key.key, k.String()))
			}
		}
	}
	if k := c.key("performance", "delete_rate"); k != nil {
		if _, err := k.Float64(); err != nil {
			errs = append(errs, fmt.Errorf("performance.delete_rate must be a number, got: %q", k.String()))
		}
	}
	for _, pattern := range all.Scan.Exclude {
		if _, err := NewIgnoreManager(pattern); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RunConfig builds the run configuration for the given roots. Test hooks
// are left nil.
func (c *Config) RunConfig(searchRoots, referenceRoots []string) (RunConfig, error) {
	if err := c.Validate(); err != nil {
		return RunConfig{}, err
	}
	all := c.GetAllConfig()

	bufferSize, _ := ParseHumanSize(all.Performance.HashBuffer)
	minSize, _ := ParseHumanSize(all.Scan.MinSize)

	ignore, err := NewIgnoreManager(all.Scan.Exclude...)
	if err != nil {
		return RunConfig{}, err
	}
	if all.Scan.IgnoreFile != "" {
		if err := ignore.LoadIgnoreFile(all.Scan.IgnoreFile); err != nil {
			return RunConfig{}, err
		}
	}

	mode := Live
	if all.Execute.DryRun {
		mode = DryRun
	}

	return RunConfig{
		SearchRoots:    searchRoots,
		ReferenceRoots: referenceRoots,
		Mode:           mode,
		Algorithm:      all.Hash.Default,
		HashWorkers:    all.Performance.HashWorkers,
		HashBuffer:     int(bufferSize),
		DeleteWorkers:  all.Performance.DeleteWorkers,
		DeleteRate:     all.Performance.DeleteRate,
		JournalPath:    all.Execute.Journal,
		Walk: WalkOptions{
			Ignore:    ignore,
			MinSize:   minSize,
			SkipEmpty: !all.Scan.IncludeEmpty,
		},
	}, nil
}

// EnvOverrides holds DUPEPRUNE_* environment variables, named after the
// fields (HashWorkers reads DUPEPRUNE_HASH_WORKERS). Unset variables are empty
// and contribute no override.
type EnvOverrides struct {
	Config        string
	Hash          string
	Format        string
	Verbose       string
	Debug         string
	HashWorkers   string `split_words:"true"`
	HashBuffer    string `split_words:"true"`
	DeleteWorkers string `split_words:"true"`
	DeleteRate    string `split_words:"true"`
	MinSize       string `split_words:"true"`
	IgnoreFile    string `split_words:"true"`
	IncludeEmpty  string `split_words:"true"`
	DryRun        string `split_words:"true"`
	Journal       string
}

// LoadEnvOverrides reads DUPEPRUNE_* variables from the environment
func LoadEnvOverrides() (*EnvOverrides, error) {
	var env EnvOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &env, nil
}

// Overrides returns the set variables in ApplyOverrides form
func (e *EnvOverrides) Overrides() []string {
	pairs := []struct {
		key   string
		value string
	}{
		{"hash", e.Hash},
		{"format", e.Format},
		{"level", e.Verbose},
		{"debug", e.Debug},
		{"hash_workers", e.HashWorkers},
		{"hash_buffer", e.HashBuffer},
		{"delete_workers", e.DeleteWorkers},
		{"delete_rate", e.DeleteRate},
		{"min_size", e.MinSize},
		{"ignore_file", e.IgnoreFile},
		{"include_empty", e.IncludeEmpty},
		{"dry_run", e.DryRun},
		{"journal", e.Journal},
	}

	var overrides []string
	for _, p := range pairs {
		if p.value != "" {
			overrides = append(overrides, p.key+":"+p.value)
		}
	}
	return overrides
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	_, err := GetHashAlgorithm(algorithm)
	return err
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatHuman, FormatJSON, FormatYAML, FormatMsgpack, FormatFdupes:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml, msgpack, fdupes)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > MaxWorkers {
		return fmt.Errorf("hash workers should not exceed %d, got: %d", MaxWorkers, workers)
	}
	return nil
}

// ValidateDeleteWorkers validates that the delete worker count is reasonable
func ValidateDeleteWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("delete workers must be at least 1, got: %d", workers)
	}
	if workers > MaxWorkers {
		return fmt.Errorf("delete workers should not exceed %d, got: %d", MaxWorkers, workers)
	}
	return nil
}

// ValidateDeleteRate validates the deletion pacing
func ValidateDeleteRate(rate float64) error {
	if rate < 0 {
		return fmt.Errorf("delete rate must not be negative, got: %g", rate)
	}
	return nil
}

// ValidateSize validates a human-readable size such as "2M"
func ValidateSize(name, value string) error {
	if _, err := ParseHumanSize(value); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}
