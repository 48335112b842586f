package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LdDl/sort-go/internal/config"
	"github.com/LdDl/sort-go/internal/logger"
	"github.com/LdDl/sort-go/internal/metrics"
	"github.com/LdDl/sort-go/internal/motio"
	"github.com/LdDl/sort-go/internal/pipeline"
	"github.com/LdDl/sort-go/internal/publish"
	"github.com/LdDl/sort-go/internal/storage"
	"github.com/LdDl/sort-go/mot"
)

// TrackCmd returns the track command
func TrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track objects from MOTChallenge detection file",
		Long: `Read detections (frame,id,x,y,w,h,conf[,class]) and write confirmed tracks
as frame,id,x,y,w,h,conf,-1,-1,-1.

Usage:
  sorttrack track --input det.txt                            # Results to stdout
  sorttrack track --input det.txt --output res.txt           # Results to file
  sorttrack track --input det.txt --checkpoint-db sort.db    # Save checkpoints
  sorttrack track --input det.txt --checkpoint-db sort.db --resume
  sorttrack track --input det.txt --nats-url nats://localhost:4222 --metrics-addr :9100`,
		RunE: runTrack,
	}

	cmd.Flags().String("input", "", "Detection file in MOTChallenge format")
	cmd.Flags().String("output", "", "Result file (stdout if empty)")
	cmd.Flags().String("config", "", "YAML configuration file")
	cmd.Flags().Bool("resume", false, "Resume from the latest checkpoint in --checkpoint-db")
	cmd.Flags().String("run-id", "", "Run identifier. With --resume selects the run to continue")
	cmd.Flags().String("checkpoint-db", "", "SQLite database for tracker checkpoints")
	cmd.Flags().String("nats-url", "", "Publish tracks to NATS server")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on address, e.g. :9100")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.MarkFlagRequired("input")

	return cmd
}

func loadTrackConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("checkpoint-db"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v, _ := cmd.Flags().GetString("nats-url"); v != "" {
		cfg.NATS.URL = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadTrackConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Level:      logger.LogLevel(cfg.Logging.Level),
		OutputPath: cfg.Logging.OutputPath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resume, _ := cmd.Flags().GetBool("resume")
	runID, _ := cmd.Flags().GetString("run-id")

	var store *storage.CheckpointStore
	if cfg.Storage.SQLitePath != "" {
		store, err = storage.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	} else if resume {
		return errors.New("--resume requires --checkpoint-db")
	}

	tracker, runID, err := prepareTracker(ctx, cfg, store, resume, runID, log)
	if err != nil {
		return err
	}
	tracker.SetLogger(log.Named("tracker"))

	inputPath, _ := cmd.Flags().GetString("input")
	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()
	var source pipeline.Source = motio.NewReader(input)
	if last, ok := tracker.LastFrame(); ok {
		source = pipeline.SkipThrough(source, last)
	}

	var output io.Writer = cmd.OutOrStdout()
	if outputPath, _ := cmd.Flags().GetString("output"); outputPath != "" {
		// Resumed run continues the results written before the checkpoint
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if resume {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		file, err := os.OpenFile(outputPath, flags, 0o644)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer file.Close()
		output = file
	}
	writer := motio.NewWriter(output)
	sinks := pipeline.MultiSink{writer}

	if cfg.NATS.URL != "" {
		natsSink, err := publish.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.NATS.ReconnectWait, log.Named("nats"))
		if err != nil {
			return err
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
		log.Info("publishing tracks", zap.String("subject", natsSink.Subject(runID)))
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		server := serveMetrics(cfg.Metrics.Addr, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	opts := pipeline.Options{
		RunID:      runID,
		BufferSize: cfg.Pipeline.BufferSize,
		Metrics:    m,
		Logger:     log.Named("pipeline"),
	}
	if store != nil {
		opts.Checkpointer = store
		opts.CheckpointEvery = cfg.Pipeline.CheckpointEvery
	}
	summary, runErr := pipeline.New(tracker, source, sinks, opts).Run(ctx)
	if err := writer.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush output: %w", err)
	}
	printSummary(cmd.ErrOrStderr(), summary, runErr)
	return runErr
}

// prepareTracker creates new tracker or restores it from the latest checkpoint
func prepareTracker(ctx context.Context, cfg *config.Config, store *storage.CheckpointStore, resume bool, runID string, log *zap.Logger) (*mot.SORTTracker, string, error) {
	if resume {
		cp, info, err := store.Latest(ctx, runID)
		if err != nil {
			return nil, "", fmt.Errorf("find checkpoint: %w", err)
		}
		tracker, err := mot.RestoreSORTTracker(cp)
		if err != nil {
			return nil, "", err
		}
		log.Info("resumed from checkpoint",
			zap.String("run_id", info.RunID),
			zap.String("checkpoint_id", info.ID),
			zap.Int64("frame", info.Frame),
			zap.Int("tracks", info.Tracks),
		)
		return tracker, info.RunID, nil
	}
	trackerCfg, err := cfg.TrackerConfig()
	if err != nil {
		return nil, "", err
	}
	tracker, err := mot.NewSORTTracker(trackerCfg)
	if err != nil {
		return nil, "", err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return tracker, runID, nil
}

func serveMetrics(addr string, m *metrics.Metrics, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return server
}

func printSummary(w io.Writer, summary pipeline.Summary, err error) {
	status := color.New(color.FgGreen).Sprint("OK")
	if err != nil {
		status = color.New(color.FgRed).Sprint("FAILED")
	}
	fmt.Fprintf(w, "%s run %s\n", status, color.New(color.FgCyan).Sprint(summary.RunID))
	fmt.Fprintf(w, "  frames:      %d (rejected %d)\n", summary.Frames, summary.RejectedFrames)
	fmt.Fprintf(w, "  detections:  %d (invalid %d, filtered %d)\n", summary.Detections, summary.Tracker.InvalidDetections, summary.Tracker.FilteredDetections)
	fmt.Fprintf(w, "  tracks:      %d created, %d confirmed, %d active\n", summary.Tracker.TracksCreated, summary.Tracker.TracksConfirmed, summary.Tracker.ActiveTracks)
	fmt.Fprintf(w, "  emitted:     %d\n", summary.Emitted)
	if summary.Checkpoints > 0 {
		fmt.Fprintf(w, "  checkpoints: %d\n", summary.Checkpoints)
	}
	fmt.Fprintf(w, "  elapsed:     %s (%.1f fps)\n", summary.Elapsed.Round(time.Millisecond), summary.FPS)
	if err != nil {
		fmt.Fprintf(w, "  error:       %s\n", color.New(color.FgYellow).Sprint(err))
	}
}
