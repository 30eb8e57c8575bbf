package aggregate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/table"
)

type row struct {
	name   string
	length int
	score  string
	pvalue string
}

func writeReport(t *testing.T, dir string, i int, rows []row) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(Header + "\n")
	for k, r := range rows {
		fmt.Fprintf(&b, "\"%d\",\"%s\",%d,%s,%s\n", k+1, r.name, r.length, r.score, r.pvalue)
	}
	path := filepath.Join(dir, fmt.Sprintf("split_%05d.csv", i))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

// scenarioA builds ten sequences over four chunks, three of which pass
// minScore=0.9, maxPValue=0.05.
func scenarioA(t *testing.T, dir string) []string {
	return []string{
		writeReport(t, dir, 1, []row{
			{"seq1", 1000, "0.95", "0.01"},
			{"seq2", 800, "0.50", "0.40"},
			{"seq3", 1200, "0.91", "0.20"},
		}),
		writeReport(t, dir, 2, []row{
			{"seq4", 900, "0.10", "0.90"},
			{"seq5", 3000, "0.99", "0.001"},
			{"seq6", 700, "0.85", "0.02"},
		}),
		writeReport(t, dir, 3, []row{
			{"seq7", 650, "0.30", "0.50"},
			{"seq8", 640, "0.20", "0.70"},
		}),
		writeReport(t, dir, 4, []row{
			{"seq9", 5000, "0.9", "0.05"},
			{"seq10", 100, "0.05", "0.99"},
		}),
	}
}

var defaultCriteria = Criteria{MinScore: 0.9, MaxPValue: 0.05}

func TestAggregateScenarioA(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	res, err := Aggregate(&out, scenarioA(t, dir), defaultCriteria, Options{Keep: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if res.Parsed != 10 || res.Passed != 3 {
		t.Fatalf("parsed=%d passed=%d, want 10/3", res.Parsed, res.Passed)
	}
	want := Header + "\n" +
		`"1","seq1",1000,0.95,0.01` + "\n" +
		`"2","seq5",3000,0.99,0.001` + "\n" +
		`"3","seq9",5000,0.9,0.05` + "\n"
	if out.String() != want {
		t.Fatalf("table mismatch:\n%s\nwant:\n%s", out.String(), want)
	}
	if got := strings.Join(res.PassedIDs, ","); got != "seq1,seq5,seq9" {
		t.Fatalf("passed ids = %s", got)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	dir := t.TempDir()
	outputs := scenarioA(t, dir)

	var first, second bytes.Buffer
	if _, err := Aggregate(&first, outputs, defaultCriteria, Options{Keep: true}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := Aggregate(&second, outputs, defaultCriteria, Options{Keep: true}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("aggregation is not byte-for-byte reproducible")
	}
}

func TestAggregateSkipsMissingAndEmptyReports(t *testing.T) {
	dir := t.TempDir()
	outputs := scenarioA(t, dir)
	if err := os.WriteFile(outputs[1], nil, 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	outputs = append(outputs, filepath.Join(dir, "split_00005.csv"))

	var out bytes.Buffer
	res, err := Aggregate(&out, outputs, defaultCriteria, Options{Keep: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Parsed != 7 || res.Passed != 2 {
		t.Fatalf("parsed=%d passed=%d, want 7/2", res.Parsed, res.Passed)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped reports, got %v", res.Skipped)
	}
	if !strings.Contains(out.String(), `"2","seq9"`) {
		t.Fatalf("ranks must stay sequential across skipped chunks:\n%s", out.String())
	}
}

func TestAggregateFilterCorrectness(t *testing.T) {
	dir := t.TempDir()
	rows := []row{
		{"a", 1, "0.9", "0.05"},
		{"b", 1, "0.8999999", "0.01"},
		{"c", 1, "1", "0.0500001"},
		{"d", 1, "0.95", "0"},
		{"e", 1, "1e-3", "1e-10"},
	}
	c := Criteria{MinScore: 0.9, MaxPValue: 0.05}
	path := writeReport(t, dir, 1, rows)

	var out bytes.Buffer
	res, err := Aggregate(&out, []string{path}, c, Options{Keep: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	expected := 0
	for _, r := range rows {
		rr, err := ParseRow(table.Row{"", r.name, "1", r.score, r.pvalue})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if rr.Score >= c.MinScore && rr.PValue <= c.MaxPValue {
			expected++
		}
	}
	if res.Passed != expected || res.Passed != 2 {
		t.Fatalf("passed=%d, expected %d", res.Passed, expected)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")[1:]
	for i, line := range lines {
		if !strings.HasPrefix(line, fmt.Sprintf("\"%d\",", i+1)) {
			t.Errorf("line %d has wrong rank: %s", i, line)
		}
	}
	if len(lines) != res.Passed {
		t.Fatalf("table rows=%d, passed=%d", len(lines), res.Passed)
	}
}

func TestAggregateMalformedRowIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "split_00001.csv")
	data := Header + "\n\"1\",\"seq1\",100\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Aggregate(&bytes.Buffer{}, []string{path}, defaultCriteria, Options{})
	if !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name the line: %v", err)
	}
}

func TestAggregateUnparsableScore(t *testing.T) {
	dir := t.TempDir()
	path := writeReport(t, dir, 1, []row{{"seq1", 10, "NA", "0.1"}})
	if _, err := Aggregate(&bytes.Buffer{}, []string{path}, defaultCriteria, Options{}); !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", err)
	}
}

func TestAggregateRemovesConsumedReports(t *testing.T) {
	dir := t.TempDir()
	outputs := scenarioA(t, dir)

	if _, err := Aggregate(&bytes.Buffer{}, outputs, defaultCriteria, Options{}); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	for _, p := range outputs {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("report %s should have been removed", p)
		}
	}
}

func TestAggregateFileWritesHeaderWithNoInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	res, err := AggregateFile(path, nil, defaultCriteria, Options{})
	if err != nil {
		t.Fatalf("aggregate file: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != Header+"\n" || res.Passed != 0 || res.Parsed != 0 {
		t.Fatalf("unexpected result %q %+v", got, res)
	}
}
