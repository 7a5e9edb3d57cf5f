package json

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestReadStructuredSingleObject(t *testing.T) {
	res, err := ReadStructured([]byte(`{"a":1,"b":"x"}`), nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Subkind != SubkindObject || len(res.Docs) != 1 {
		t.Fatalf("res = %+v, want one object doc", res)
	}
	if res.Docs[0]["a"] != json.Number("1") {
		t.Fatalf("a = %v (%T), want json.Number 1", res.Docs[0]["a"], res.Docs[0]["a"])
	}
}

func TestReadStructuredBOMPrefix(t *testing.T) {
	res, err := ReadStructured([]byte("\ufeff{\"a\":1}"), nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Subkind != SubkindObject || len(res.Docs) != 1 {
		t.Fatalf("res = %+v, want one object doc", res)
	}
}

func TestReadStructuredArray(t *testing.T) {
	res, err := ReadStructured([]byte(`[{"a":1},{"a":2},null]`), nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Subkind != SubkindArray || len(res.Docs) != 2 {
		t.Fatalf("res = %+v, want two docs (null skipped)", res)
	}
}

func TestReadStructuredFeaturesEnvelope(t *testing.T) {
	in := []byte(`{"type":"FeatureCollection","features":[{"id":"f1"},{"id":"f2"}]}`)
	res, err := ReadStructured(in, nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(res.Docs) != 2 || res.Docs[0]["id"] != "f1" {
		t.Fatalf("docs = %v, want the features list", res.Docs)
	}
}

func TestReadStructuredLines(t *testing.T) {
	in := []byte("{\"a\":1}\n\n{\"a\":2}\nnot json at all\n{'a': 3}\n")

	var badLines []int
	res, err := ReadStructured(in, func(line int, err error) { badLines = append(badLines, line) })
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Subkind != SubkindLines {
		t.Fatalf("subkind = %v, want lines", res.Subkind)
	}
	// Strict lines plus the single-quoted permissive retry succeed; the prose
	// line is skipped and counted.
	if len(res.Docs) != 3 {
		t.Fatalf("docs = %d, want 3", len(res.Docs))
	}
	if res.SkippedLines != 1 || len(badLines) != 1 {
		t.Fatalf("skipped = %d, badLines = %v, want exactly one", res.SkippedLines, badLines)
	}
}

func TestReadStructuredMissOnDelimitedText(t *testing.T) {
	_, err := ReadStructured([]byte("a,b,c\n1,2,3\n"), nil)
	if !errors.Is(err, ErrNotStructured) {
		t.Fatalf("err = %v, want ErrNotStructured", err)
	}
}

func TestReadStructuredEmpty(t *testing.T) {
	if _, err := ReadStructured([]byte("   \n"), nil); err == nil {
		t.Fatalf("empty payload must error")
	}
}
