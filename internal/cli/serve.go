package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/harun/fiftplay/internal/config"
	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/internal/tracing"
	"github.com/harun/fiftplay/pkg/gateway"
	"github.com/harun/fiftplay/pkg/snippets"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playground gateway",
	Long: `Run the playground gateway in the foreground.
Editors connect over websocket at /ws; snippet sharing is backed by sqlite
when enabled. SIGINT or SIGTERM shuts the gateway down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "listen port, 0 picks a free port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Gateway.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Gateway.Port = servePort
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	pidFile := getPIDFilePath(cfg)
	if pid, ok := readPID(pidFile); ok && isRunning(pid) {
		return fmt.Errorf("gateway is already running (PID %d, file: %s)", pid, pidFile)
	}

	if cfg.DataDir != "" {
		auditPath := filepath.Join(cfg.DataDir, "audit.log")
		audit, err := observability.OpenAuditLog(auditPath)
		if err != nil {
			log.Warn().Err(err).Str("file", auditPath).Msg("Failed to open audit log")
		} else {
			prev := observability.SetAuditLogger(audit)
			defer func() {
				observability.SetAuditLogger(prev)
				audit.Close()
			}()
		}
	}

	if cfg.Tracing.Enabled {
		err := tracing.Setup(tracing.Options{
			ServiceName:    "fiftplay",
			ServiceVersion: GetVersion(),
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log.GetZerolog(), func(addr string) {
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			log.Warn().Err(err).Str("file", pidFile).Msg("Failed to write PID file")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fiftplay gateway listening on ws://%s/ws\n", addr)
	}, func() {
		os.Remove(pidFile)
	})
}

// serve runs the gateway until ctx is done. ready is called with the
// listening address once the gateway accepts connections.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger, ready func(addr string), cleanup func()) error {
	var snippetStore *snippets.Store
	if cfg.Snippets.Enabled {
		ttl, err := cfg.SnippetTTL()
		if err != nil {
			return err
		}
		snippetStore, err = snippets.New(snippets.Config{
			DBPath:    cfg.Snippets.DBPath,
			TTL:       ttl,
			CacheSize: cfg.Snippets.CacheSize,
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("failed to open snippet store: %w", err)
		}
		defer snippetStore.Close()

		if cfg.Snippets.PurgeSchedule != "" && ttl > 0 {
			if err := snippetStore.StartPurger(cfg.Snippets.PurgeSchedule); err != nil {
				return err
			}
		}
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:              cfg.Gateway.Host,
		Port:              cfg.Gateway.Port,
		AllowedOrigins:    cfg.Gateway.AllowedOrigins,
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		ShowOutput:        cfg.Gateway.ShowOutput,
		DisableMetrics:    !cfg.Metrics.Enabled,
		Snippets:          snippetStore,
		Logger:            log,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if ready != nil {
		ready(server.Addr())
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}
