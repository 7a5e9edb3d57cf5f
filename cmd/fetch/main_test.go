package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lakeload/internal/config"
	"lakeload/internal/fetch"
	"lakeload/internal/objectstore"
)

func TestFetchPortalDownloadsDiscoveredLinks(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/portal":
			fmt.Fprint(w, `<html><body>
				<a class="resource" href="/files/bonos.csv">bonos</a>
				<a class="resource" href="/files/pensiones.csv">pensiones</a>
				<a href="/about">about</a>
			</body></html>`)
		case "/files/bonos.csv":
			w.Header().Set("Content-Type", "text/csv")
			fmt.Fprint(w, "a,b\n1,2\n")
		case "/files/pensiones.csv":
			w.Header().Set("Content-Type", "text/csv")
			fmt.Fprint(w, "c,d\n3,4\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	client := fetch.NewClient(store, fetch.Options{MaxAttempts: 1})

	src := config.Source{Name: "mies", Page: srv.URL + "/portal", Selector: "a.resource"}
	logs, err := fetchPortal(ctx, client, src)
	if err != nil {
		t.Fatalf("fetchPortal: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %+v, want one attempt per discovered link", logs)
	}

	keys, err := store.List(ctx, "mies_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("stored keys = %v, want the two resource links", keys)
	}
	for _, want := range []string{"mies_bonos_", "mies_pensiones_"} {
		found := false
		for _, k := range keys {
			if strings.HasPrefix(k, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("keys = %v, missing one with prefix %s", keys, want)
		}
	}
}

func TestFetchPortalNoMatchesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no links here</p></body></html>`)
	}))
	defer srv.Close()

	store, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	client := fetch.NewClient(store, fetch.Options{MaxAttempts: 1})

	src := config.Source{Name: "mies", Page: srv.URL, Selector: "a.resource"}
	if _, err := fetchPortal(context.Background(), client, src); err == nil {
		t.Fatalf("portal without matching links must fail")
	}
}

func TestLinkName(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.test/files/bonos_2025.csv", "mies_bonos_2025"},
		{"https://example.test/", "mies"},
		{"https://example.test/download?id=7", "mies_download"},
	}
	for _, c := range cases {
		if got := linkName("mies", c.url); got != c.want {
			t.Errorf("linkName(mies, %q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestStageBlobCopiesFromBucket(t *testing.T) {
	ctx := context.Background()

	bucket, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	store, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	if err := bucket.Put(ctx, "static/mies_registro.csv", strings.NewReader("a;b\n1;2\n")); err != nil {
		t.Fatalf("seed bucket: %v", err)
	}

	src := config.Source{Name: "mies", Blob: "static/mies_registro.csv"}
	if err := stageBlob(ctx, bucket, store, src); err != nil {
		t.Fatalf("stageBlob: %v", err)
	}

	rc, err := store.Get(ctx, "mies_registro.csv")
	if err != nil {
		t.Fatalf("staged blob missing: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "a;b\n1;2\n" {
		t.Errorf("staged body = %q", body)
	}
}

func TestStageBlobRequiresBucket(t *testing.T) {
	store, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	src := config.Source{Name: "mies", Blob: "x.csv"}
	if err := stageBlob(context.Background(), nil, store, src); err == nil {
		t.Fatalf("blob staging without a bucket must fail")
	}
}

func TestStageBlobSameBucketIsNoop(t *testing.T) {
	bucket, err := objectstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	src := config.Source{Name: "mies", Blob: "x.csv"}
	if err := stageBlob(context.Background(), bucket, bucket, src); err != nil {
		t.Fatalf("stageBlob same-store: %v", err)
	}
}
