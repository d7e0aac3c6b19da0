package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/harun/fiftplay/internal/config"
	"github.com/harun/fiftplay/internal/logger"
	"github.com/harun/fiftplay/pkg/linkcodec"
	"github.com/harun/fiftplay/pkg/mirror"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	encodeWatch   bool
	encodeBaseURL string
	decodeOut     string
	filesOutput   string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <dir>",
	Short: "Print the share link of a directory",
	Long: `Load every text file under a directory into a workspace and print its
share link. With --watch the link is printed again after every change.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <link>",
	Short: "Print or export the files of a share link",
	Long: `Decode a share link (a full URL, a "#token" fragment or a bare token).
Files are printed to stdout, or written below --out.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var filesCmd = &cobra.Command{
	Use:   "files <link>",
	Short: "List the files of a share link",
	Long: `List the files of a share link as a table, or as JSON or YAML
records with --output.`,
	Args: cobra.ExactArgs(1),
	RunE: runFiles,
}

func init() {
	encodeCmd.Flags().BoolVarP(&encodeWatch, "watch", "w", false, "keep watching and print the link after each change")
	encodeCmd.Flags().StringVar(&encodeBaseURL, "base-url", "", "playground URL to prefix the link with")
	decodeCmd.Flags().StringVarP(&decodeOut, "out", "o", "", "directory to write the files to")
	filesCmd.Flags().StringVarP(&filesOutput, "output", "o", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(filesCmd)
}

// oneShotLogger logs warnings to stderr unless --log-level asks for more
func oneShotLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	if flag := cmd.Flags().Lookup("log-level"); flag == nil || !flag.Changed {
		cfg.Logging.Level = "warn"
	}
	return newLogger(cfg, false)
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := oneShotLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	m, err := mirror.New(mirror.Config{
		Root:               args[0],
		StabilityThreshold: cfg.StabilityThreshold(),
		Logger:             log.GetZerolog(),
	})
	if err != nil {
		return err
	}
	store, err := m.NewStore()
	if err != nil {
		return err
	}
	defer store.Close()

	printer := &linkPrinter{out: cmd.OutOrStdout(), baseURL: encodeBaseURL}
	if err := printer.print(store); err != nil {
		return err
	}
	if !encodeWatch {
		return nil
	}

	for _, event := range []playground.WorkspaceEvent{
		playground.EventFileAdded,
		playground.EventFileDeleted,
		playground.EventFileRenamed,
		playground.EventFileEdited,
	} {
		store.On(event, func(payload interface{}) {
			if err := printer.print(store); err != nil {
				log.Error().Err(err).Msg("Failed to serialize workspace")
			}
		})
	}

	if err := m.Watch(store); err != nil {
		return err
	}
	defer m.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

// linkPrinter writes one link per line. Watch callbacks may overlap.
type linkPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
}

func (p *linkPrinter) print(store *playground.Store) error {
	link, err := store.Serialize()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintln(p.out, p.baseURL+link)
	return err
}

func runDecode(cmd *cobra.Command, args []string) error {
	entries, err := linkcodec.Unmarshal(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if decodeOut != "" {
		if err := mirror.Export(entries, decodeOut); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d files to %s\n", len(entries), decodeOut)
		return nil
	}

	for i, entry := range entries {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "==> %s <==\n", entry.Filename)
		fmt.Fprintln(out, entry.Code)
	}
	return nil
}

// fileRecord is one row of the files listing
type fileRecord struct {
	Filename string `json:"filename" yaml:"filename"`
	Language string `json:"language" yaml:"language"`
	Bytes    int    `json:"bytes" yaml:"bytes"`
	Main     bool   `json:"main" yaml:"main"`
}

func runFiles(cmd *cobra.Command, args []string) error {
	switch filesOutput {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (must be one of: table, json, yaml)", filesOutput)
	}

	store, err := playground.NewStore(playground.StoreOptions{SerializedState: args[0]})
	if err != nil {
		return err
	}
	defer store.Close()

	var records []fileRecord
	for _, file := range store.Files() {
		code, _ := store.Code(file.Filename)
		records = append(records, fileRecord{
			Filename: file.Filename,
			Language: string(file.Language()),
			Bytes:    len(code),
			Main:     file.Filename == store.MainFile(),
		})
	}

	out := cmd.OutOrStdout()
	switch filesOutput {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tLANGUAGE\tBYTES\tMAIN")
	for _, r := range records {
		main := ""
		if r.Main {
			main = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Filename, r.Language, r.Bytes, main)
	}
	return w.Flush()
}
