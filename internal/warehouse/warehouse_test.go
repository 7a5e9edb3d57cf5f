package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type stubLoader struct{}

func (stubLoader) EnsureDataset(context.Context) error      { return nil }
func (stubLoader) Load(context.Context, Job) (int64, error) { return 0, nil }
func (stubLoader) Close()                                   {}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("New with empty kind must fail")
	}
	if _, err := New(context.Background(), Config{Kind: "oracle"}); err == nil {
		t.Fatalf("New with unregistered kind must fail")
	}
}

func TestRegisterAndNew(t *testing.T) {
	Register("testkind", func(ctx context.Context, cfg Config) (Loader, error) {
		return stubLoader{}, nil
	})

	l, err := New(context.Background(), Config{Kind: "testkind"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l == nil {
		t.Fatalf("New returned nil loader")
	}

	found := false
	for _, k := range Kinds() {
		if k == "testkind" {
			found = true
		}
	}
	if !found {
		t.Errorf("Kinds() = %v, missing testkind", Kinds())
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}

	mustPanic("empty_kind", func() { Register("", func(context.Context, Config) (Loader, error) { return nil, nil }) })
	mustPanic("nil_factory", func() { Register("nilfactory", nil) })
	mustPanic("duplicate", func() {
		Register("dupekind", func(context.Context, Config) (Loader, error) { return nil, nil })
		Register("dupekind", func(context.Context, Config) (Loader, error) { return nil, nil })
	})
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return p
}

func TestReadLocalTableCSV(t *testing.T) {
	p := writeArtifact(t, "x_cleancsv.csv", "a,b,c\n1,two,\n4,,six\n")

	tab, err := ReadLocalTable(p, FormatCSV)
	if err != nil {
		t.Fatalf("ReadLocalTable: %v", err)
	}
	if !reflect.DeepEqual(tab.Columns, []string{"a", "b", "c"}) {
		t.Errorf("columns = %v", tab.Columns)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[0][0] != "1" || tab.Rows[0][1] != "two" {
		t.Errorf("row 0 = %v", tab.Rows[0])
	}
	// A short row pads with NULL, not empty string.
	short := writeArtifact(t, "short.csv", "a,b\nonly\n")
	tab, err = ReadLocalTable(short, FormatCSV)
	if err != nil {
		t.Fatalf("ReadLocalTable short: %v", err)
	}
	if tab.Rows[0][1] != nil {
		t.Errorf("missing field = %v, want nil", tab.Rows[0][1])
	}
}

func TestReadLocalTableNDJSON(t *testing.T) {
	p := writeArtifact(t, "x_expanded.json",
		`{"b":1,"a":"x"}`+"\n"+`{"a":"y","c":true}`+"\n")

	tab, err := ReadLocalTable(p, FormatNDJSON)
	if err != nil {
		t.Fatalf("ReadLocalTable: %v", err)
	}
	// Union of keys in first-seen order across lines.
	if !reflect.DeepEqual(tab.Columns, []string{"b", "a", "c"}) {
		t.Errorf("columns = %v, want [b a c]", tab.Columns)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tab.Rows))
	}
	if tab.Rows[0][0] != "1" || tab.Rows[0][1] != "x" || tab.Rows[0][2] != nil {
		t.Errorf("row 0 = %v", tab.Rows[0])
	}
	if tab.Rows[1][0] != nil || tab.Rows[1][1] != "y" || tab.Rows[1][2] != "true" {
		t.Errorf("row 1 = %v", tab.Rows[1])
	}
}

func TestReadLocalTableNDJSONBadLine(t *testing.T) {
	p := writeArtifact(t, "bad.json", `{"a":1}`+"\n"+`{broken`+"\n")
	if _, err := ReadLocalTable(p, FormatNDJSON); err == nil {
		t.Fatalf("corrupt artifact line must fail the load decode")
	}
}

func TestReadLocalTableUnknownFormat(t *testing.T) {
	p := writeArtifact(t, "x.bin", "data")
	if _, err := ReadLocalTable(p, Format("parquet")); err == nil {
		t.Fatalf("unknown format must fail")
	}
}
