package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// VirFinder runs the VirFinder R package through Rscript.
type VirFinder struct {
	rscript string
}

func NewVirFinder(rscript string) *VirFinder {
	if rscript == "" {
		rscript = "Rscript"
	}
	return &VirFinder{rscript: rscript}
}

func (v *VirFinder) Name() string {
	return "virfinder"
}

// Probe checks that Rscript runs and that the VirFinder library loads.
func (v *VirFinder) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(v.rscript); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", v.rscript, err)
	}
	if out, err := exec.CommandContext(ctx, v.rscript, "--version").CombinedOutput(); err != nil {
		return fmt.Errorf("R is not installed: %w\nOutput: %s", err, string(out))
	}
	if out, err := v.rCommand(ctx, "library('VirFinder');").CombinedOutput(); err != nil {
		return fmt.Errorf("VirFinder library not loadable: %w\nOutput: %s", err, string(out))
	}
	return nil
}

// Command returns the (unstarted) classifier process for one chunk. The
// report has the columns "","name","length","score","pvalue".
func (v *VirFinder) Command(ctx context.Context, chunk, output string) *exec.Cmd {
	return v.rCommand(ctx, Script(chunk, output))
}

func (v *VirFinder) rCommand(ctx context.Context, script string) *exec.Cmd {
	return exec.CommandContext(ctx, v.rscript, "--vanilla", "--no-save", "-e", script)
}

// Script is the inline R program scoring chunk into output.
func Script(chunk, output string) string {
	return fmt.Sprintf(
		"library('VirFinder'); Result <- VF.pred('%s'); write.csv(Result, file='%s', row.names=TRUE);",
		rQuote(chunk), rQuote(output),
	)
}

var rEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// rQuote escapes s for use inside a single-quoted R string literal.
func rQuote(s string) string {
	return rEscaper.Replace(s)
}
