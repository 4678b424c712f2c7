package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	dupeprune "github.com/mattkeenan/dupeprune/pkg"
	"github.com/spf13/cobra"
)

// options holds the parsed command line
type options struct {
	verbose       int
	dryRun        bool
	references    []string
	excludes      []string
	hash          string
	workers       int
	deleteWorkers int
	deleteRate    float64
	format        string
	journal       string
	minSize       string
	skipEmpty     bool
	configPath    string
	sets          []string
	debug         string
	noColor       bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dupeprune [flags] SEARCH_DIR...",
		Short: "Find and delete duplicate files",
		Long: `dupeprune finds files with identical content under the search directories
and deletes all but one copy of each. Files under reference directories
(--reference) are never deleted; a search file that duplicates a reference
file is always deleted.

Every duplicate is confirmed byte for byte before anything is removed. Use
--dry-run to see what would be deleted.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, opts, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase verbosity (repeat for more detail)")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "report what would be deleted without deleting")
	flags.StringArrayVarP(&opts.references, "reference", "r", nil, "reference directory whose files are never deleted (repeatable)")
	flags.StringArrayVar(&opts.excludes, "exclude", nil, "regular expression of relative paths to skip (repeatable)")
	flags.StringVar(&opts.hash, "hash", "", "fingerprint algorithm: "+strings.Join(dupeprune.SupportedHashAlgorithms(), ", "))
	flags.IntVar(&opts.workers, "workers", 0, "files hashed concurrently")
	flags.IntVar(&opts.deleteWorkers, "delete-workers", 0, "groups deleted concurrently")
	flags.Float64Var(&opts.deleteRate, "delete-rate", 0, "maximum deletions per second (0 is unlimited)")
	flags.StringVar(&opts.format, "format", "", "report format: human, json, yaml, msgpack, fdupes")
	flags.StringVar(&opts.journal, "journal", "", "append each deletion to this journal file")
	flags.StringVar(&opts.minSize, "min-size", "", "ignore files smaller than this size (e.g. 4K)")
	flags.BoolVar(&opts.skipEmpty, "skip-empty", false, "ignore zero-byte files")
	flags.StringVar(&opts.debug, "debug", "", "comma-separated debug flags: walk, hash, verify, plan, execute, all")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dupeprune/config)")
	persistent.StringArrayVar(&opts.sets, "set", nil, "config override as key:value (repeatable)")

	cmd.AddCommand(newConfigCommand(opts), newVersionCommand())
	return cmd
}

// loadConfig resolves the config file and applies overrides in precedence
// order: file, environment, --set, then explicit flags
func loadConfig(cmd *cobra.Command, opts *options) (*dupeprune.Config, error) {
	env, err := dupeprune.LoadEnvOverrides()
	if err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = env.Config
	}
	if configPath == "" {
		if configPath, err = dupeprune.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := dupeprune.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(env.Overrides()); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.ApplyOverrides(opts.sets); err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(flagOverrides(cmd, opts)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagOverrides converts explicitly set flags to config overrides
func flagOverrides(cmd *cobra.Command, opts *options) []string {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	var overrides []string
	if changed("verbose") {
		overrides = append(overrides, "level:"+strconv.Itoa(min(opts.verbose, 3)))
	}
	if changed("dry-run") {
		overrides = append(overrides, "dry_run:"+strconv.FormatBool(opts.dryRun))
	}
	if changed("hash") {
		overrides = append(overrides, "hash:"+opts.hash)
	}
	if changed("workers") {
		overrides = append(overrides, "hash_workers:"+strconv.Itoa(opts.workers))
	}
	if changed("delete-workers") {
		overrides = append(overrides, "delete_workers:"+strconv.Itoa(opts.deleteWorkers))
	}
	if changed("delete-rate") {
		overrides = append(overrides, "delete_rate:"+strconv.FormatFloat(opts.deleteRate, 'g', -1, 64))
	}
	if changed("format") {
		overrides = append(overrides, "format:"+opts.format)
	}
	if changed("journal") {
		overrides = append(overrides, "journal:"+opts.journal)
	}
	if changed("min-size") {
		overrides = append(overrides, "min_size:"+opts.minSize)
	}
	if changed("skip-empty") {
		overrides = append(overrides, "include_empty:"+strconv.FormatBool(!opts.skipEmpty))
	}
	if changed("debug") {
		overrides = append(overrides, "debug:"+opts.debug)
	}
	for _, pattern := range opts.excludes {
		overrides = append(overrides, "exclude:"+pattern)
	}
	return overrides
}

func runPrune(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if opts.noColor {
		color.NoColor = true
	}
	dupeprune.SetLogOutput(cmd.ErrOrStderr())
	dupeprune.InitLogging(cfg.GetVerboseConfig())

	runConfig, err := cfg.RunConfig(args, opts.references)
	if err != nil {
		return err
	}

	report, runErr := dupeprune.Run(cmd.Context(), runConfig)
	if report != nil {
		if err := renderReport(cmd.OutOrStdout(), cfg.GetOutputConfig().Format, report); err != nil {
			return err
		}
	}
	return runErr
}

func newConfigCommand(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.Path())
			_, err = cfg.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := opts.configPath
			if configPath == "" {
				env, err := dupeprune.LoadEnvOverrides()
				if err != nil {
					return err
				}
				configPath = env.Config
			}
			if configPath == "" {
				var err error
				if configPath, err = dupeprune.DefaultConfigPath(); err != nil {
					return err
				}
			}

			cfg, err := dupeprune.InitConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", cfg.Path())
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}
