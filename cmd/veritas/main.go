package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/veritasai/veritas/internal/config"
	"github.com/veritasai/veritas/internal/core"
	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/export"
	"github.com/veritasai/veritas/internal/server"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Serve flags
	addr string

	// Analyze flags
	format    string
	outPath   string
	village   string
	partition string

	// Text flags
	mode string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "Veritas AI - survey map extraction and overlap detection",
	Long: `Veritas turns scanned village partition maps into structured survey
records. Map images are sent to a vision-capable LLM provider, the extracted
partitions are checked for survey numbers that appear in more than one
partition, and the annotated result can be exported as CSV, Markdown or JSON.

Run 'veritas serve' to expose the pipeline over HTTP, or 'veritas analyze'
to process map files directly from the command line. Without an API key the
map pipeline serves a bundled demo dataset.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := godotenv.Load(); err != nil {
			logger.Debug("No .env file found, using defaults")
		}

		// A config file named explicitly must exist; the default path is
		// optional.
		if cmd.Flags().Changed("config") {
			cfg, err = config.Load(configPath)
		} else {
			cfg, err = config.LoadOrDefault(configPath)
		}
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API for map extraction, overlap resolution, text
analysis and export. Endpoints are documented by GET /healthz; Prometheus
metrics are exposed on GET /metrics.`,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [map files]",
	Short: "Extract partitions from map images and flag overlapping survey numbers",
	Long: `Runs the extraction pipeline on one or more map scans and prints the
resolved partition table. Files are processed concurrently and joined in
argument order before overlap detection, so overlaps that span files are
still flagged.

Example:
  veritas analyze --village Shivapur -f csv scans/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var textCmd = &cobra.Command{
	Use:   "text [input]",
	Short: "Run a text analysis mode against the configured provider",
	Long: `Sends text through one of the configured analysis modes and streams
the answer to stdout. Reads from stdin when no argument is given.

Example:
  echo "The dam was built in 1967." | veritas text --mode factcheck`,
	Args: cobra.MaximumNArgs(1),
	RunE: runText,
}

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the configured text analysis modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer := core.NewAnalyzer(nil, cfg, logger)
		for _, m := range analyzer.Modes() {
			fmt.Println(m)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.toml", "Path to the TOML config file")

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	analyzeCmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, markdown or json")
	analyzeCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write output to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&village, "village", "", "Override the village name on every partition")
	analyzeCmd.Flags().StringVar(&partition, "partition", "", "Override the partition id on every partition")

	textCmd.Flags().StringVarP(&mode, "mode", "m", "analysis", "Analysis mode (see 'veritas modes')")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(modesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr != "" {
		cfg.Server.Addr = addr
	}

	srv, err := server.NewFromConfig(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	r := srv.SetupRouter()
	logger.Info("Starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", cfg.LLM.Provider),
		zap.Bool("demo", cfg.DemoMode()))
	if err := r.Run(cfg.Server.Addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outFormat, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	files := make([]model.MapFile, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read map file: %w", err)
		}
		files = append(files, model.MapFile{
			Name:        filepath.Base(path),
			MIMEType:    detectMIME(path, data),
			Data:        data,
			VillageName: village,
			PartitionID: partition,
		})
	}

	analyzer, err := core.NewAnalyzerFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	result, isDemo, err := analyzer.AnalyzeMaps(ctx, files)
	if err != nil {
		return err
	}
	if isDemo {
		logger.Warn("No API key configured, returning the demo dataset")
	}

	rendered, err := export.Render(outFormat, result)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		logger.Info("Wrote analysis",
			zap.String("path", outPath),
			zap.Int("partitions", len(result.Partitions)))
		return nil
	}

	fmt.Print(rendered)
	if !strings.HasSuffix(rendered, "\n") {
		fmt.Println()
	}
	return nil
}

func runText(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var input string
	if len(args) > 0 {
		input = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(data)
	}
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("no input text given")
	}

	analyzer, err := core.NewAnalyzerFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// The stream callback receives the cumulative text; print only what is
	// new since the last chunk.
	printed := 0
	_, err = analyzer.AnalyzeText(ctx, mode, input, func(text string) error {
		if len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func detectMIME(path string, data []byte) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return http.DetectContentType(data)
}
