// Package uploader parses uploader command flags and drives one upload
// session against the tracking API.
package uploader

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/mansiachuthan/runboard/internal/logdir"
	entrypoint "github.com/mansiachuthan/runboard/internal/platform/cmd"
	"github.com/mansiachuthan/runboard/internal/tracking/httpapi"
	"github.com/mansiachuthan/runboard/internal/uploader"
)

// Config holds uploader command configuration.
type Config struct {
	Endpoint      string `env:"RUNBOARD_ENDPOINT" envDefault:"http://localhost:8080"`
	Token         string `env:"RUNBOARD_TOKEN"`
	APIKeyID      string `env:"RUNBOARD_API_KEY_ID"`
	APIKeySecret  string `env:"RUNBOARD_API_KEY_SECRET"`
	Experiment    string `env:"RUNBOARD_EXPERIMENT"`
	Logdir        string `env:"RUNBOARD_LOGDIR"`
	Workers       int    `env:"RUNBOARD_WORKERS" envDefault:"4"`
	BatchPoints   int    `env:"RUNBOARD_BATCH_POINTS" envDefault:"1000"`
	PageSize      int    `env:"RUNBOARD_PAGE_SIZE"`
	RetryRequests bool   `env:"RUNBOARD_RETRY" envDefault:"true"`

	StoreEndpoint  string `env:"RUNBOARD_STORE_ENDPOINT"`
	StoreAccessKey string `env:"RUNBOARD_STORE_ACCESS_KEY"`
	StoreSecretKey string `env:"RUNBOARD_STORE_SECRET_KEY"`
	StoreRegion    string `env:"RUNBOARD_STORE_REGION" envDefault:"us-east-1"`
	StoreUseSSL    bool   `env:"RUNBOARD_STORE_USE_SSL" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "The tracking API server URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Static API bearer token")
	fs.StringVar(&cfg.APIKeyID, "api-key-id", cfg.APIKeyID, "API key id for signed-token auth")
	fs.StringVar(&cfg.Experiment, "experiment", cfg.Experiment, "Parent experiment resource name (experiments/{experiment})")
	fs.StringVar(&cfg.Logdir, "logdir", cfg.Logdir, "Log location: a directory or s3://bucket/prefix")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent run uploads")
	fs.IntVar(&cfg.BatchPoints, "batch-points", cfg.BatchPoints, "Maximum points per write request")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "List page size (0 = server default)")
	fs.BoolVar(&cfg.RetryRequests, "retry", cfg.RetryRequests, "Retry transient API failures")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration names an experiment, a log
// location, and a usable credential.
func (c Config) Validate() error {
	if c.Experiment == "" {
		return errors.New("experiment resource name is required")
	}
	if c.Logdir == "" {
		return errors.New("log location is required")
	}
	if c.Token == "" && c.APIKeyID == "" {
		return errors.New("either an api token or an api key is required")
	}
	return nil
}

func tokenSource(cfg Config) (httpapi.TokenSource, error) {
	if cfg.APIKeyID != "" {
		return httpapi.NewAPIKey(cfg.APIKeyID, []byte(cfg.APIKeySecret))
	}
	return httpapi.StaticToken(cfg.Token), nil
}

// Run executes one upload session.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceUploader, func(ctx context.Context) error {
		tokens, err := tokenSource(cfg)
		if err != nil {
			return err
		}
		client, err := httpapi.NewClient(httpapi.Config{
			URL:           cfg.Endpoint,
			Tokens:        tokens,
			RetryRequests: cfg.RetryRequests,
			PageSize:      cfg.PageSize,
		})
		if err != nil {
			return err
		}
		source, err := logdir.Open(cfg.Logdir, logdir.BucketConfig{
			Endpoint:  cfg.StoreEndpoint,
			AccessKey: cfg.StoreAccessKey,
			SecretKey: cfg.StoreSecretKey,
			Region:    cfg.StoreRegion,
			UseSSL:    cfg.StoreUseSSL,
		})
		if err != nil {
			return err
		}
		session, err := uploader.NewSession(uploader.Config{
			Service:     client,
			Source:      source,
			Experiment:  cfg.Experiment,
			Workers:     cfg.Workers,
			BatchPoints: cfg.BatchPoints,
		})
		if err != nil {
			return err
		}

		reports, err := session.Upload(ctx)
		if err != nil {
			return err
		}
		failed := 0
		for _, report := range reports {
			if report.Err != nil {
				failed++
				log.Printf("run %q failed: %v (wrote %d points, skipped %d)", report.Run, report.Err, report.Points, report.Skipped)
				continue
			}
			log.Printf("run %q: wrote %d points to %s", report.Run, report.Points, report.Resource)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs failed", failed, len(reports))
		}
		return nil
	})
}
