package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"lakeload/internal/config"
	"lakeload/internal/fetch"
	"lakeload/internal/objectstore"
)

// main downloads every configured source into the raw store: API sources
// over HTTP with stamped names, portal pages scraped for dataset links,
// static blobs copied from the raw bucket. Each attempt is logged as one
// JSONL line; a failing source never stops the others.
func main() {
	var (
		cfgPath    string
		onlySource string
		logPath    string
		timeout    time.Duration
		attempts   int
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&onlySource, "source", "", "fetch only the named source")
	flag.StringVar(&logPath, "log", "", "attempt log JSONL path (default stderr)")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "per-request timeout")
	flag.IntVar(&attempts, "attempts", 3, "max attempts per source")
	flag.Parse()

	p, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(p.Sources) == 0 {
		log.Fatalf("no sources configured in %s", cfgPath)
	}

	logOut := io.Writer(os.Stderr)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open attempt log: %v", err)
		}
		defer f.Close()
		logOut = f
	}

	ctx := context.Background()

	store, bucket, cleanup, err := openStores(ctx, p)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer cleanup()

	client := fetch.NewClient(store, fetch.Options{
		Timeout:     timeout,
		MaxAttempts: attempts,
		UserAgent:   "lakeload-fetch",
	})

	enc := json.NewEncoder(logOut)
	fetched, failed := 0, 0

	for _, src := range p.Sources {
		if onlySource != "" && src.Name != onlySource {
			continue
		}

		var err error
		var logs []fetch.AttemptLog
		switch {
		case src.URL != "":
			_, logs, err = client.Fetch(ctx, src)
		case src.Page != "":
			logs, err = fetchPortal(ctx, client, src)
		default:
			err = stageBlob(ctx, bucket, store, src)
		}

		for _, rec := range logs {
			if encErr := enc.Encode(rec); encErr != nil {
				log.Printf("attempt log: %v", encErr)
			}
		}
		if err != nil {
			log.Printf("fetch %s: %v", src.Name, err)
			failed++
			continue
		}
		fetched++
	}

	log.Printf("fetch summary: ok=%d failed=%d", fetched, failed)
	if fetched == 0 && failed > 0 {
		os.Exit(1)
	}
}

// openStores returns the destination raw store and, for blob staging, the
// source bucket (nil when not configured).
func openStores(ctx context.Context, p *config.Pipeline) (objectstore.Store, objectstore.Store, func(), error) {
	noop := func() {}

	if p.Mode == "gcp" && p.GCP.RawBucket != "" {
		bucket, err := objectstore.NewGCS(ctx, p.GCP.RawBucket, p.GCP.CredentialsFile)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("raw bucket: %w", err)
		}
		return bucket, bucket, func() { _ = bucket.Close() }, nil
	}

	dir, err := objectstore.NewDir(p.RawDir)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("raw dir: %w", err)
	}

	// Local mode can still stage static blobs out of a bucket when one is
	// configured.
	if p.GCP.RawBucket != "" {
		bucket, err := objectstore.NewGCS(ctx, p.GCP.RawBucket, p.GCP.CredentialsFile)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("raw bucket: %w", err)
		}
		return dir, bucket, func() { _ = bucket.Close() }, nil
	}
	return dir, nil, noop, nil
}

// fetchPortal scrapes a portal page for dataset links and downloads every
// discovered URL. A failing link does not stop the rest; the source fails
// only when discovery fails or no link could be fetched.
func fetchPortal(ctx context.Context, client *fetch.Client, src config.Source) ([]fetch.AttemptLog, error) {
	selector := src.Selector
	if selector == "" {
		selector = "a"
	}

	urls, err := client.DiscoverHrefs(ctx, src.Page, selector)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", src.Page, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no links matched %q on %s", selector, src.Page)
	}

	var logs []fetch.AttemptLog
	ok := 0
	for _, u := range urls {
		_, linkLogs, err := client.Fetch(ctx, config.Source{Name: linkName(src.Name, u), URL: u})
		logs = append(logs, linkLogs...)
		if err != nil {
			log.Printf("fetch %s: link %s: %v", src.Name, u, err)
			continue
		}
		ok++
	}
	if ok == 0 {
		return logs, fmt.Errorf("all %d discovered links failed", len(urls))
	}
	return logs, nil
}

// linkName derives a dataset tag for one discovered link: the source name
// plus the link's file stem, when it has one.
func linkName(prefix, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return prefix
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return prefix
	}
	return prefix + "_" + base
}

// stageBlob copies one static object from the bucket into the raw store.
func stageBlob(ctx context.Context, bucket, store objectstore.Store, src config.Source) error {
	if src.Blob == "" {
		return fmt.Errorf("source %q has neither url nor blob", src.Name)
	}
	if bucket == nil {
		return fmt.Errorf("source %q needs a raw bucket to stage blob %s", src.Name, src.Blob)
	}
	if bucket == store {
		// The blob already lives in the destination bucket.
		return nil
	}

	rc, err := bucket.Get(ctx, src.Blob)
	if err != nil {
		return fmt.Errorf("get blob %s: %w", src.Blob, err)
	}
	defer rc.Close()

	return store.Put(ctx, path.Base(src.Blob), rc)
}

func loadConfig(cfgPath string) (*config.Pipeline, error) {
	f, err := os.Open(cfgPath)
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
