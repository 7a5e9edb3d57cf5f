package loadgate

import "testing"

var goodSample = []byte("a,b,c\n1,2,3\n")

func TestEvaluateKnownBadSuffixes(t *testing.T) {
	for _, name := range []string{
		"datos_clean.json",
		"datos_cleanjson.json",
		"datos_cleanbin.json",
	} {
		d := Evaluate(name, nil, nil)
		if d.Verdict != SkippedKnownBad {
			t.Errorf("Evaluate(%q) = %v, want skipped-known-bad", name, d.Verdict)
		}
		if d.Reason == "" {
			t.Errorf("Evaluate(%q) has empty reason", name)
		}
	}
}

func TestEvaluateBrokenDelimiterFamily(t *testing.T) {
	d := Evaluate("mies_bonos_2025_cleancsv.csv", nil, goodSample)
	if d.Verdict != SkippedKnownBad {
		t.Fatalf("verdict = %v, want skipped-known-bad", d.Verdict)
	}

	d = Evaluate("mremh_presupuesto_cleancsv.csv", nil, goodSample)
	if d.Verdict != SkippedKnownBad {
		t.Fatalf("verdict = %v, want skipped-known-bad", d.Verdict)
	}
}

func TestEvaluateSupersededDuplicate(t *testing.T) {
	artifacts := map[string]bool{
		"x_cleancsv.csv": true,
		"x_clean.csv":    true,
	}

	d := Evaluate("x_cleancsv.csv", artifacts, goodSample)
	if d.Verdict != SkippedSuperseded {
		t.Fatalf("x_cleancsv.csv verdict = %v, want skipped-superseded", d.Verdict)
	}

	d = Evaluate("x_clean.csv", artifacts, goodSample)
	if d.Verdict != Accepted {
		t.Fatalf("x_clean.csv verdict = %v (%s), want accepted", d.Verdict, d.Reason)
	}
}

func TestEvaluateSupersededDuplicateOddCasing(t *testing.T) {
	artifacts := map[string]bool{
		"X_CLEANCSV.CSV": true,
		"X_clean.csv":    true,
	}
	d := Evaluate("X_CLEANCSV.CSV", artifacts, goodSample)
	if d.Verdict != SkippedSuperseded {
		t.Fatalf("verdict = %v, want skipped-superseded despite upper-case suffix", d.Verdict)
	}
}

func TestEvaluateCleancsvWithoutSiblingIsCandidate(t *testing.T) {
	artifacts := map[string]bool{"x_cleancsv.csv": true}
	d := Evaluate("x_cleancsv.csv", artifacts, goodSample)
	if d.Verdict != Accepted {
		t.Fatalf("verdict = %v, want accepted when no canonical sibling exists", d.Verdict)
	}
}

func TestEvaluateRejectsMalformedCSV(t *testing.T) {
	sample := []byte("a;b;c;d;e;f;g;h;i;j;k;\n")
	d := Evaluate("datos_clean.csv", map[string]bool{}, sample)
	if d.Verdict != RejectedInvalid {
		t.Fatalf("verdict = %v, want rejected-invalid", d.Verdict)
	}
	if d.Reason == "" {
		t.Fatalf("rejection must carry a reason")
	}
}

func TestEvaluateNDJSONSkipsCSVValidation(t *testing.T) {
	d := Evaluate("api_sismos_usgs_expanded.ndjson", nil, nil)
	if d.Verdict != Accepted {
		t.Fatalf("verdict = %v, want accepted", d.Verdict)
	}
}

func TestTableName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"api_clima_20250101120000_expanded.ndjson", "api_clima"},
		{"mies_bonos_pensiones_2025_abril_csv_20250101120000_clean.csv", "mies_bonos_pensiones_2025_abril_csv"},
		{"releases_2025_catalogo_items_expanded.ndjson", "releases_2025_catalogo_items"},
		{"datos_bqload.csv", "datos"},
		{"simple.csv", "simple"},
	}
	for _, c := range cases {
		if got := TableName(c.in); got != c.want {
			t.Errorf("TableName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTableNameProcurementStreamsDistinct(t *testing.T) {
	rel := TableName("releases_202401_releases_expanded.json")
	items := TableName("releases_202401_items_expanded.json")
	if rel == items {
		t.Fatalf("release and item artifacts map to the same table %q", rel)
	}
	if rel != "releases_202401" {
		t.Errorf("release table = %q, want releases_202401", rel)
	}
	if items != "releases_202401_items" {
		t.Errorf("items table = %q, want releases_202401_items", items)
	}
}

func TestTableNameStableAcrossRuns(t *testing.T) {
	a := TableName("api_clima_20250101120000_expanded.ndjson")
	b := TableName("api_clima_20250607080910_expanded.ndjson")
	if a != b {
		t.Fatalf("table names differ across runs: %q vs %q", a, b)
	}
}
