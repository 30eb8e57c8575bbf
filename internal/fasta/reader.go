// Package fasta streams FASTA records from plain or gzip-compressed files and
// writes them back out in unwrapped two-line form.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Record is one FASTA entry. ID is the full header text after '>'.
type Record struct {
	ID  string
	Seq string
}

// Reader yields records lazily. It is not rewindable; open the path again to
// make another pass.
type Reader struct {
	rc      io.ReadCloser
	br      *bufio.Reader
	id      string
	seq     strings.Builder
	started bool
	done    bool
}

// Open returns a Reader over path. A missing or unreadable path is reported
// here rather than on the first call to Next.
func Open(path string) (*Reader, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return NewReader(rc), nil
}

// NewReader wraps an already opened stream. Close closes rc.
func NewReader(rc io.ReadCloser) *Reader {
	return &Reader{rc: rc, br: bufio.NewReaderSize(rc, 1<<20)}
}

// Next returns the next record, or io.EOF once the stream is exhausted.
// Sequence lines seen before the first header are dropped.
func (r *Reader) Next() (Record, error) {
	for {
		if r.done {
			return Record{}, io.EOF
		}
		line, err := r.br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, fmt.Errorf("read fasta: %w", err)
		}
		eof := err != nil

		if strings.HasPrefix(line, ">") {
			id := strings.TrimSpace(line[1:])
			if r.started {
				rec := r.flush()
				r.id = id
				return rec, nil
			}
			r.started = true
			r.id = id
		} else if r.started {
			r.seq.WriteString(strings.TrimRightFunc(line, unicode.IsSpace))
		}

		if eof {
			r.done = true
			if r.started {
				return r.flush(), nil
			}
		}
	}
}

func (r *Reader) flush() Record {
	rec := Record{ID: r.id, Seq: r.seq.String()}
	r.seq.Reset()
	return rec
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// Each streams every record in path through fn, stopping at the first error
// returned by fn.
func Each(path string, fn func(Record) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
