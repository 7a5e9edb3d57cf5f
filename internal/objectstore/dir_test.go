package objectstore

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestDirRoundTrip(t *testing.T) {
	s, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "raw/forecast_20240101000000.json", strings.NewReader(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := s.Get(ctx, "raw/forecast_20240101000000.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("content = %q", got)
	}
}

func TestDirPutReplaces(t *testing.T) {
	s, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "k", strings.NewReader("first version")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", strings.NewReader("second")); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != "second" {
		t.Errorf("content = %q, want replacement", got)
	}
}

func TestDirListPrefix(t *testing.T) {
	s, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	ctx := context.Background()

	for _, k := range []string{"raw/b.json", "raw/a.csv", "processed/a_expanded.json"} {
		if err := s.Put(ctx, k, strings.NewReader("x")); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	keys, err := s.List(ctx, "raw/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"raw/a.csv", "raw/b.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List all = %v, want 3 keys", all)
	}
}

func TestDirGetMissing(t *testing.T) {
	s, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	if _, err := s.Get(context.Background(), "nope"); err == nil {
		t.Fatalf("Get of missing key must fail")
	}
}
