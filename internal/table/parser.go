// Package table streams rows out of the comma-separated reports written by
// the classifier.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Row is one CSV record. The parser does not check its width.
type Row []string

// Parser yields non-blank rows from a delimited file.
type Parser struct {
	f    *os.File
	r    *csv.Reader
	line int
}

func Open(path string) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &Parser{f: f, r: r}, nil
}

// Next returns the next row whose first field is non-empty, skipping the
// header (whose first column is "") and blank lines. It returns io.EOF at the
// end of the file.
func (p *Parser) Next() (Row, error) {
	for {
		rec, err := p.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p.f.Name(), err)
		}
		p.line, _ = p.r.FieldPos(0)
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		return Row(rec), nil
	}
}

// Line reports the input line of the row most recently returned by Next.
func (p *Parser) Line() int { return p.line }

func (p *Parser) Close() error {
	return p.f.Close()
}

// Each opens path and calls fn for every non-blank row.
func Each(path string, fn func(Row) error) error {
	p, err := Open(path)
	if err != nil {
		return err
	}
	defer p.Close()
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
