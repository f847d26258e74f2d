package tableprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableEmptySetMessage(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, nil)
	if strings.TrimSpace(buf.String()) != "Empty set" {
		t.Errorf("got %q, want \"Empty set\"", buf.String())
	}
}

func TestTableRendersSortedColumnsAndNull(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]any{
		{"name": "Ann", "country": nil},
		{"name": "Bo", "country": "US"},
	}
	Table(&buf, rows)
	out := buf.String()
	if !strings.Contains(out, "country") || !strings.Contains(out, "name") {
		t.Fatalf("missing column headers: %s", out)
	}
	if strings.Index(out, "country") > strings.Index(out, "name") {
		t.Errorf("columns should be sorted alphabetically, got: %s", out)
	}
	if !strings.Contains(out, "NULL") {
		t.Errorf("nil value should render as NULL, got: %s", out)
	}
	if !strings.Contains(out, "2 row(s) in set") {
		t.Errorf("missing row count footer, got: %s", out)
	}
}

func TestJSONEncodesRowsAsArray(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]any{{"name": "Ann"}}
	if err := JSON(&buf, rows); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"name": "Ann"`) {
		t.Errorf("JSON output = %s", out)
	}
}
