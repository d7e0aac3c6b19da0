package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/fiftplay/internal/config"
	"github.com/harun/fiftplay/internal/logger"
	"github.com/spf13/cobra"
)

// version is overridden at build time through cmd/fiftplay
var version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fiftplay",
	Short: "fiftplay - multi-file Fift playground",
	Long: `fiftplay hosts multi-file Fift playground workspaces.
Workspaces travel as share links; the gateway keeps each connected
editor's document models in step with its workspace.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fiftplay/fiftplay.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// SetVersion replaces the reported version
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads and validates the config. An explicit --log-level wins
// over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Long-running commands log to the
// console and the configured file; one-shot commands only to stderr.
func newLogger(cfg *config.Config, longRunning bool) (*logger.Logger, error) {
	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	}
	if longRunning {
		logCfg.File = cfg.Logging.File
		if logCfg.File == "" && cfg.DataDir != "" {
			logCfg.File = filepath.Join(cfg.DataDir, "fiftplay.log")
		}
		logCfg.MaxSize = cfg.Logging.MaxSize
		logCfg.MaxAge = cfg.Logging.MaxAge
		logCfg.Compress = cfg.Logging.Compress
	}
	return logger.New(logCfg)
}

func getPIDFilePath(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, "fiftplay.pid")
	}
	return filepath.Join(os.TempDir(), "fiftplay.pid")
}
