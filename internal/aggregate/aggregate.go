// Package aggregate merges per-chunk classifier reports into one ranked,
// filtered table.
package aggregate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/table"
)

// Header is the first line of both the classifier reports and the merged table.
const Header = `"","name","length","score","pvalue"`

// ErrMalformedRow marks a report row that cannot be interpreted. It is fatal
// for the run.
var ErrMalformedRow = errors.New("malformed result row")

// Criteria decides which rows pass. Both bounds are inclusive.
type Criteria struct {
	MinScore  float64
	MaxPValue float64
}

// Pass reports whether score >= MinScore and pvalue <= MaxPValue.
func (c Criteria) Pass(score, pvalue float64) bool {
	return score >= c.MinScore && pvalue <= c.MaxPValue
}

// ResultRow is the typed view of one report row. The original field text is
// kept so the merged table reproduces it exactly.
type ResultRow struct {
	Name      string
	Length    string
	Score     float64
	PValue    float64
	ScoreText string
	PText     string
}

// ParseRow converts a raw row into a ResultRow. Column 0 (the classifier's
// row index) is ignored.
func ParseRow(row table.Row) (ResultRow, error) {
	if len(row) < 5 {
		return ResultRow{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrMalformedRow, len(row))
	}
	score, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return ResultRow{}, fmt.Errorf("%w: score %q: %v", ErrMalformedRow, row[3], err)
	}
	pvalue, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return ResultRow{}, fmt.Errorf("%w: pvalue %q: %v", ErrMalformedRow, row[4], err)
	}
	return ResultRow{
		Name:      row[1],
		Length:    row[2],
		Score:     score,
		PValue:    pvalue,
		ScoreText: row[3],
		PText:     row[4],
	}, nil
}

// Options controls side effects of Aggregate.
type Options struct {
	// Keep retains each report after it has been consumed.
	Keep   bool
	Logger *slog.Logger
}

// Result summarises a merge.
type Result struct {
	Passed    int
	Parsed    int
	PassedIDs []string
	// Skipped lists reports that were missing or empty.
	Skipped []string
}

// Aggregate writes the merged table to w. Reports are consumed in the order
// given, which must be the launch order: ranks are assigned sequentially as
// rows pass and are never re-sorted by score.
func Aggregate(w io.Writer, outputs []string, c Criteria, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return Result{}, err
	}

	var res Result
	for _, path := range outputs {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			logger.Info("no results for chunk", "path", path)
			res.Skipped = append(res.Skipped, path)
			continue
		}

		before := res.Parsed
		if err := mergeReport(bw, path, c, &res); err != nil {
			return res, err
		}
		logger.Debug("merged chunk report", "path", path, "rows", res.Parsed-before, "passed_total", res.Passed)

		if !opts.Keep {
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to remove chunk report", "path", path, "err", err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return res, fmt.Errorf("write table: %w", err)
	}
	return res, nil
}

func mergeReport(w io.Writer, path string, c Criteria, res *Result) error {
	p, err := table.Open(path)
	if err != nil {
		return err
	}
	defer p.Close()

	for {
		raw, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Parsed++

		row, err := ParseRow(raw)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, p.Line(), err)
		}
		if !c.Pass(row.Score, row.PValue) {
			continue
		}
		res.Passed++
		res.PassedIDs = append(res.PassedIDs, row.Name)
		if _, err := fmt.Fprintf(w, "\"%d\",\"%s\",%s,%s,%s\n", res.Passed, row.Name, row.Length, row.ScoreText, row.PText); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
}

// AggregateFile creates (or truncates) path and aggregates into it.
func AggregateFile(path string, outputs []string, c Criteria, opts Options) (Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("create output table: %w", err)
	}
	res, err := Aggregate(f, outputs, c, opts)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close output table: %w", cerr)
	}
	return res, err
}
