package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeTool struct {
	name string
	err  error
}

func (f fakeTool) Name() string                { return f.name }
func (f fakeTool) Probe(context.Context) error { return f.err }

func TestChunkNaming(t *testing.T) {
	tests := []struct {
		fn   func(string, int) string
		i    int
		want string
	}{
		{ChunkPath, 1, "split_00001.fasta"},
		{ChunkPath, 12, "split_00012.fasta"},
		{OutputPath, 3, "split_00003.csv"},
		{LogPath, 99999, "split_99999.log"},
	}
	for _, tt := range tests {
		got := tt.fn("/tmp/run", tt.i)
		if got != filepath.Join("/tmp/run", tt.want) {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func TestScriptQuotesPaths(t *testing.T) {
	got := Script("/tmp/it's/split_00001.fasta", "/tmp/out.csv")
	if !strings.Contains(got, `VF.pred('/tmp/it\'s/split_00001.fasta')`) {
		t.Fatalf("chunk path not escaped: %s", got)
	}
	if !strings.HasPrefix(got, "library('VirFinder');") {
		t.Fatalf("script must load VirFinder first: %s", got)
	}
	if !strings.Contains(got, "write.csv(Result, file='/tmp/out.csv', row.names=TRUE);") {
		t.Fatalf("unexpected write.csv call: %s", got)
	}
}

func TestVirFinderCommandArgs(t *testing.T) {
	cmd := NewVirFinder("/opt/R/bin/Rscript").Command(context.Background(), "a.fasta", "a.csv")
	if cmd.Path != "/opt/R/bin/Rscript" {
		t.Fatalf("unexpected binary: %s", cmd.Path)
	}
	if len(cmd.Args) != 5 || cmd.Args[1] != "--vanilla" || cmd.Args[2] != "--no-save" || cmd.Args[3] != "-e" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestCheckDependencies(t *testing.T) {
	boom := errors.New("boom")
	err := CheckDependencies(context.Background(),
		fakeTool{name: "ok"},
		fakeTool{name: "virfinder", err: boom},
		fakeTool{name: "never", err: errors.New("unreached")},
	)
	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDependencyError, got %v", err)
	}
	if missing.Tool != "virfinder" || !errors.Is(err, boom) {
		t.Fatalf("unexpected failure: %+v", missing)
	}
	if err := CheckDependencies(context.Background(), fakeTool{name: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-split")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestFuSplitSuccessAndArgs(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := writeScript(t, `echo "$@" > `+argsFile+"\n")

	if err := NewFuSplit(bin).Split(context.Background(), "in.fa", dir, 4); err != nil {
		t.Fatalf("split: %v", err)
	}
	got, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "-i in.fa -o " + filepath.Join(dir, "split_00000.fasta") + " -n 4 --threads 4\n"
	if string(got) != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestFuSplitFailure(t *testing.T) {
	bin := writeScript(t, "echo bad input >&2\nexit 3\n")
	err := NewFuSplit(bin).Split(context.Background(), "in.fa", t.TempDir(), 2)
	if !errors.Is(err, ErrSplitFailed) {
		t.Fatalf("expected ErrSplitFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestFuSplitProbeMissing(t *testing.T) {
	if err := NewFuSplit(filepath.Join(t.TempDir(), "absent")).Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure for missing binary")
	}
}
