// cmd/pvf-check checks that fu-split, Rscript and the VirFinder package are
// usable, and can classify a single FASTA file without splitting it.
//
// Usage:
//
//	./pvf-check                          # probe dependencies only
//	./pvf-check -input contigs.fa -stats # record count and total length
//	./pvf-check -input small.fa          # run VirFinder once and filter
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/aggregate"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/fasta"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/tools"
)

func main() {
	input := flag.String("input", "", "FASTA file to inspect or classify")
	output := flag.String("output", "", "write the filtered table here (default: stdout)")
	stats := flag.Bool("stats", false, "print FASTA statistics only (don't classify)")
	minScore := flag.Float64("min-score", 0.9, "minimum VirFinder score")
	maxP := flag.Float64("max-p-value", 0.05, "maximum p-value")
	splitBin := flag.String("split-bin", getenv("PVF_SPLIT_BIN", "fu-split"), "fu-split binary")
	rscriptBin := flag.String("rscript-bin", getenv("PVF_RSCRIPT_BIN", "Rscript"), "Rscript binary")
	timeout := flag.Duration("timeout", 30*time.Minute, "classification timeout")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *input == "" {
		splitter := tools.NewFuSplit(*splitBin)
		classifier := tools.NewVirFinder(*rscriptBin)
		failed := false
		for _, t := range []tools.Tool{splitter, classifier} {
			if err := t.Probe(ctx); err != nil {
				fmt.Printf("✗ %s: %v\n", t.Name(), err)
				failed = true
				continue
			}
			fmt.Printf("✓ %s\n", t.Name())
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	if _, err := os.Stat(*input); err != nil {
		log.Fatalf("input file not readable: %v", err)
	}

	if *stats {
		st, err := collectStats(*input)
		if err != nil {
			log.Fatalf("read FASTA: %v", err)
		}
		printStats(*input, st)
		return
	}

	classifier := tools.NewVirFinder(*rscriptBin)
	if err := classifier.Probe(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	work, err := os.MkdirTemp("", "pvf-check-")
	if err != nil {
		log.Fatalf("create work directory: %v", err)
	}
	defer os.RemoveAll(work)

	report := tools.OutputPath(work, 1)
	if *verbose {
		fmt.Fprintf(os.Stderr, "running VirFinder on %s\n", *input)
	}
	start := time.Now()
	cmd := classifier.Command(ctx, *input, report)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Fatalf("VirFinder failed: %v\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	criteria := aggregate.Criteria{MinScore: *minScore, MaxPValue: *maxP}
	var res aggregate.Result
	if *output == "" {
		res, err = aggregate.Aggregate(os.Stdout, []string{report}, criteria, aggregate.Options{})
	} else {
		res, err = aggregate.AggregateFile(*output, []string{report}, criteria, aggregate.Options{})
	}
	if err != nil {
		log.Fatalf("filter results: %v", err)
	}

	fmt.Fprintf(os.Stderr, "passed %d out of %d sequences in %v\n", res.Passed, res.Parsed, time.Since(start).Round(time.Millisecond))
}

type fastaStats struct {
	Records   int
	Bases     int64
	Longest   int
	FileBytes int64
}

func collectStats(path string) (fastaStats, error) {
	var st fastaStats
	err := fasta.Each(path, func(rec fasta.Record) error {
		st.Records++
		st.Bases += int64(len(rec.Seq))
		if len(rec.Seq) > st.Longest {
			st.Longest = len(rec.Seq)
		}
		return nil
	})
	if err != nil {
		return fastaStats{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fastaStats{}, err
	}
	st.FileBytes = info.Size()
	return st, nil
}

func printStats(path string, st fastaStats) {
	fmt.Printf("File: %s (%s)\n", path, humanize.Bytes(uint64(st.FileBytes)))
	fmt.Printf("Sequences: %s\n", humanize.Comma(int64(st.Records)))
	fmt.Printf("Total length: %s bp\n", humanize.Comma(st.Bases))
	fmt.Printf("Longest: %s bp\n", humanize.Comma(int64(st.Longest)))
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
