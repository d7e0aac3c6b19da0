package cli

import (
	"fmt"

	"github.com/harun/fiftplay/internal/config"
	"github.com/spf13/cobra"
)

var configureShow bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Edit or show the playground configuration",
	Long: `Ask for the gateway address, snippet sharing and logging settings,
starting from the current configuration, and save the answers.
With --show the effective configuration (file, .env and FIFTPLAY_*
variables applied) is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureShow, "show", false, "print the effective configuration and exit")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	current, err := loader.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if configureShow {
		fmt.Fprintln(out, current.String())
		return nil
	}

	cfg, err := config.NewWizard(cmd.InOrStdin(), out).Run(current)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintf(out, "Start the gateway with: fiftplay serve (ws://%s:%d/ws)\n", cfg.Gateway.Host, cfg.Gateway.Port)
	return nil
}
