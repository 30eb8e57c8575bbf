package tools

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// splitPattern is the template fu-split fills in with 1-based indices.
const splitPattern = "split_00000.fasta"

// FuSplit uses fu-split from seqfu to split FASTA files into balanced chunks.
type FuSplit struct {
	bin string
}

func NewFuSplit(bin string) *FuSplit {
	if bin == "" {
		bin = "fu-split"
	}
	return &FuSplit{bin: bin}
}

func (f *FuSplit) Name() string {
	return "fu-split"
}

func (f *FuSplit) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(f.bin); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", f.bin, err)
	}
	return nil
}

// Split writes split_00001.fasta ... split_<n>.fasta into dir.
//
// -i: input FASTA
// -o: output pattern, the zeros are replaced by the chunk number
// -n: number of chunks
// --threads: one thread per chunk
func (f *FuSplit) Split(ctx context.Context, input, dir string, n int) error {
	args := []string{
		"-i", input,
		"-o", filepath.Join(dir, splitPattern),
		"-n", strconv.Itoa(n),
		"--threads", strconv.Itoa(n),
	}
	cmd := exec.CommandContext(ctx, f.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v\nOutput: %s", ErrSplitFailed, f.bin, err, string(out))
	}
	return nil
}
