// Package reconcile extracts, from the original input, the sequences whose
// identifiers passed the filter.
package reconcile

import (
	"fmt"
	"io"
	"os"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/fasta"
)

// Reconcile streams input and writes every record whose ID is in ids to w.
// Membership is order-independent. It returns the number of records written,
// which can differ from len(ids) when identifiers are duplicated in the input
// or absent from it; callers decide how to report that.
func Reconcile(input string, ids []string, w io.Writer) (int, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	fw := fasta.NewWriter(w)
	written := 0
	err := fasta.Each(input, func(rec fasta.Record) error {
		if _, ok := want[rec.ID]; !ok {
			return nil
		}
		written++
		return fw.Write(rec)
	})
	if err != nil {
		return written, fmt.Errorf("reconcile %s: %w", input, err)
	}
	if err := fw.Flush(); err != nil {
		return written, fmt.Errorf("write fasta: %w", err)
	}
	return written, nil
}

// ReconcileFile writes the matching records to the FASTA file at output.
func ReconcileFile(input string, ids []string, output string) (int, error) {
	f, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("create fasta output: %w", err)
	}
	n, err := Reconcile(input, ids, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close fasta output: %w", cerr)
	}
	return n, err
}
