package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-work-report/internal/config"
	"github.com/Tiliavir/trivial-work-report/internal/model"
	"github.com/Tiliavir/trivial-work-report/internal/storage"
)

var (
	rootDir  string
	dataPath string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "twr",
	Short: "Trivial Work Report – daily work reports on the command line",
	Long: `twr records daily work reports, optionally spanning several days, in a
personal and a shared namespace. All data is stored in a single
human-readable JSON file (data/reports.json below --root by default).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Application root holding config.json and the data directory")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Report file to use instead of the configured one")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(outlookCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().
		Logger()
}

// loadConfig returns the configuration below --root, falling back to defaults.
func loadConfig() config.Config {
	cfg, path, err := config.Load(rootDir)
	if err != nil {
		log.Warn().Err(err).Msg("using default configuration")
		return cfg
	}
	if path != "" {
		log.Debug().Str("path", path).Msg("loaded config")
	}
	return cfg
}

// openStore loads the report store. A corrupt data file has already been
// moved aside by the store and is not fatal; any other read error is.
func openStore(cfg config.Config) *storage.Store {
	path := dataPath
	if path == "" {
		path = cfg.DataFilePath(rootDir)
	}

	store := storage.New(path, storage.WithLogger(log.Logger))
	if err := store.Load(); err != nil {
		if !errors.Is(err, storage.ErrCorruptData) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Warning: starting with an empty report list: %v\n", err)
	}
	return store
}

// saveStore persists the store or exits with a storage error.
func saveStore(store *storage.Store) {
	if err := store.Save(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// parseOwner validates an --owner flag value. An empty value is allowed only
// when allowAll is set and means "both namespaces".
func parseOwner(s string, allowAll bool) ([]model.Owner, error) {
	if s == "" || s == "all" {
		if allowAll {
			return nil, nil
		}
		return nil, fmt.Errorf("owner is required (personal or shared)")
	}
	o := model.Owner(s)
	if !o.Valid() {
		return nil, fmt.Errorf("%w %q (want personal or shared)", storage.ErrUnknownOwner, s)
	}
	return []model.Owner{o}, nil
}

// mustOwner parses a single owner or exits with a usage error.
func mustOwner(s string) model.Owner {
	owners, err := parseOwner(s, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return owners[0]
}
