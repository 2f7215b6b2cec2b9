// Command geodrive batch-geocodes an address workbook through the
// portal: split the source into chunk workbooks, log in once, run one
// remote job per chunk, and collect the result artifacts in the
// download directory. The batch aborts on the first failed chunk.
//
// Usage:
//
//	geodrive -config geodrive.yaml -input addresses.xlsx -column 주소
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/geodrive/browse"
	"github.com/hazyhaar/geodrive/chunk"
	"github.com/hazyhaar/geodrive/dirwatch"
	"github.com/hazyhaar/geodrive/geocode"
	"github.com/hazyhaar/geodrive/journal"
)

type appConfig struct {
	Browser struct {
		DownloadDir    string `yaml:"download_dir"`
		Headless       *bool  `yaml:"headless"`
		InsecureOrigin string `yaml:"insecure_origin"`
	} `yaml:"browser"`
	Geocode geocode.Config `yaml:"geocode"`
	Batch   struct {
		ChunkDir    string `yaml:"chunk_dir"`
		ChunkSize   int    `yaml:"chunk_size"`
		JournalPath string `yaml:"journal"`
	} `yaml:"batch"`
}

func loadAppConfig(path string) (*appConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg appConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Browser.DownloadDir == "" {
		cfg.Browser.DownloadDir = "downloads"
	}
	if cfg.Browser.InsecureOrigin == "" {
		cfg.Browser.InsecureOrigin = "http://geobigdata.go.kr"
	}
	if cfg.Batch.ChunkDir == "" {
		cfg.Batch.ChunkDir = "chunks"
	}
	if cfg.Batch.JournalPath == "" {
		cfg.Batch.JournalPath = "geodrive.db"
	}
	return &cfg, nil
}

func main() {
	configPath := flag.String("config", "geodrive.yaml", "path to geodrive.yaml")
	input := flag.String("input", "", "source workbook with the address column")
	column := flag.String("column", "주소", "address column name in the source workbook")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *input, *column); err != nil {
		logger.Error("geodrive: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, input, column string) error {
	if input == "" {
		return fmt.Errorf("-input is required")
	}
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Geocode.Logger = logger

	jnl, err := journal.Open(cfg.Batch.JournalPath, logger)
	if err != nil {
		return err
	}
	defer jnl.Close()

	records, err := chunk.ReadColumn(input, column)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	paths, err := chunk.Write(cfg.Batch.ChunkDir, base, chunk.Split(records, cfg.Batch.ChunkSize))
	if err != nil {
		return err
	}
	logger.Info("geodrive: chunks prepared", "records", len(records), "chunks", len(paths))

	sess, err := browse.Launch(browse.LaunchConfig{
		DownloadDir:    cfg.Browser.DownloadDir,
		Headless:       cfg.Browser.Headless,
		InsecureOrigin: cfg.Browser.InsecureOrigin,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		// Let any in-flight download settle before killing Chrome.
		dirwatch.AwaitQuiet(sess.DownloadDir(), dirwatch.Options{
			Timeout: 10 * time.Minute,
			Logger:  logger,
		})
		sess.Terminate()
	}()

	client := geocode.New(sess, cfg.Geocode)
	if err := client.Login(ctx); err != nil {
		return err
	}

	for i, p := range paths {
		started := time.Now()
		err := client.ProcessChunk(ctx, p)
		entry := journal.Entry{
			ChunkPath: p,
			Artifact:  filepath.Base(p),
			Outcome:   journal.OutcomeSuccess,
			StartedAt: started,
			EndedAt:   time.Now(),
		}
		if err != nil {
			entry.Outcome = journal.OutcomeFailure
			entry.Detail = err.Error()
		}
		jnl.Record(ctx, entry)

		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(paths), err)
		}
		logger.Info("geodrive: chunk done", "chunk", i+1, "total", len(paths))
	}

	logger.Info("geodrive: batch complete", "chunks", len(paths))
	return nil
}
