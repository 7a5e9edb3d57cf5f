package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lakeload/internal/config"
	"lakeload/internal/metrics"
	"lakeload/internal/metrics/datadog"
	"lakeload/internal/objectstore"
	"lakeload/internal/pipeline"
	"lakeload/internal/warehouse"

	// register all backends with the warehouse factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "lakeload/internal/warehouse/all"
)

// main is the entry point for the batch binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes a
// derive+load run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
		deriveOnly        bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&deriveOnly, "derive-only", false, "derive artifacts but skip the load phase")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := loadConfig(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(*p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default (none).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := p.Job
		if jobName == "" {
			jobName = "lakeload"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: jobName,
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)

			// Close() stops the periodic flush loop and performs the final
			// flush; this is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	engine, cleanup, err := buildEngine(ctx, p, deriveOnly)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer cleanup()

	if *verbose {
		log.Printf("pipeline: mode=%s raw=%s processed=%s", p.Mode, p.RawDir, p.ProcessedDir)
	}

	sum, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("run summary: %s", sum)
	for _, f := range sum.Failed {
		log.Printf("failed: %s: %s", f.Name, f.Reason)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func loadConfig(path string) (*config.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &p, nil
}

// buildEngine assembles the pipeline engine for the configured mode. The
// returned cleanup closes whatever was opened, in reverse order.
func buildEngine(ctx context.Context, p *config.Pipeline, deriveOnly bool) (*pipeline.Engine, func(), error) {
	engine := &pipeline.Engine{
		RawDir:       p.RawDir,
		ProcessedDir: p.ProcessedDir,
		Parser:       p.Parser,
		Logger:       log.Default(),
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if !deriveOnly {
		loader, err := warehouse.New(ctx, warehouseConfig(p))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("warehouse: %w", err)
		}
		closers = append(closers, loader.Close)
		engine.Loader = loader
	}

	if p.Mode == "gcp" {
		if p.GCP.RawBucket != "" {
			raw, err := objectstore.NewGCS(ctx, p.GCP.RawBucket, p.GCP.CredentialsFile)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("raw bucket: %w", err)
			}
			closers = append(closers, func() { _ = raw.Close() })
			engine.RawStore = raw
		}
		if p.GCP.ProcessedBucket != "" {
			processed, err := objectstore.NewGCS(ctx, p.GCP.ProcessedBucket, p.GCP.CredentialsFile)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("processed bucket: %w", err)
			}
			closers = append(closers, func() { _ = processed.Close() })
			engine.ProcessedStore = processed
		}
	}

	return engine, cleanup, nil
}

// warehouseConfig maps the pipeline mode onto a warehouse factory config:
// gcp mode always means bigquery; local mode uses the configured kind.
func warehouseConfig(p *config.Pipeline) warehouse.Config {
	if p.Mode == "gcp" {
		return warehouse.Config{
			Kind:            "bigquery",
			ProjectID:       p.GCP.ProjectID,
			DatasetID:       p.GCP.DatasetID,
			CredentialsFile: p.GCP.CredentialsFile,
		}
	}
	return warehouse.Config{
		Kind: p.Warehouse.Kind,
		DSN:  p.Warehouse.ExpandedDSN(),
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
