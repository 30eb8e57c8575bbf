package fasta

import (
	"bufio"
	"io"
)

// Writer emits records as ">id\nseq\n" without line wrapping.
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) Write(rec Record) error {
	if err := w.bw.WriteByte('>'); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(rec.ID); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(rec.Seq); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Flush must be called once all records are written.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
