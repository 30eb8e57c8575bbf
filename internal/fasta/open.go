package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzipReadCloser closes the decompressor and the underlying file together.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// openFile opens path for reading, transparently decompressing gzip input
// detected by the .gz suffix or the 1f 8b magic bytes.
func openFile(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fasta: %w", err)
	}
	br := bufio.NewReader(fh)
	magic, _ := br.Peek(2)
	isGzip := len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b
	if !isGzip && !strings.HasSuffix(path, ".gz") {
		return struct {
			io.Reader
			io.Closer
		}{br, fh}, nil
	}
	gr, err := gzip.NewReader(br)
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("open gzip fasta %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: gr, file: fh}, nil
}
