package mssql

import "testing"

func TestCreateTableSQL(t *testing.T) {
	got := createTableSQL("releases", []string{"release_id", "ocid"})
	want := "CREATE TABLE [releases] ([release_id] NVARCHAR(MAX), [ocid] NVARCHAR(MAX))"
	if got != want {
		t.Errorf("createTableSQL = %q, want %q", got, want)
	}
}

func TestInsertSQLPlaceholders(t *testing.T) {
	got := insertSQL("t", []string{"a", "b", "c"})
	want := "INSERT INTO [t] ([a], [b], [c]) VALUES (@p1, @p2, @p3)"
	if got != want {
		t.Errorf("insertSQL = %q, want %q", got, want)
	}
}

func TestBracketIdentEscapes(t *testing.T) {
	if got := bracketIdent("we]ird"); got != "[we]]ird]" {
		t.Errorf("bracketIdent = %q", got)
	}
}
