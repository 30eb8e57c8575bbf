package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/aggregate"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/pipeline"
)

type config struct {
	Input      string
	Output     string
	Fasta      string
	Parallel   int
	TmpDir     string
	MinScore   float64
	MaxPValue  float64
	NoCheck    bool
	Verbose    bool
	Debug      bool
	KeepTmp    bool
	Version    bool
	ConfigPath string
	Timeout    time.Duration

	Ledger       string
	MetricsFile  string
	SplitBin     string
	RscriptBin   string
	NATSURL      string
	EventSubject string
}

// fileConfig mirrors the settings accepted in a --config YAML file. Nil means
// the key was absent.
type fileConfig struct {
	Input        *string  `yaml:"input"`
	Output       *string  `yaml:"output"`
	Fasta        *string  `yaml:"fasta"`
	Parallel     *int     `yaml:"parallel"`
	TmpDir       *string  `yaml:"tmpdir"`
	MinScore     *float64 `yaml:"min_score"`
	MaxPValue    *float64 `yaml:"max_p_value"`
	KeepTmp      *bool    `yaml:"keep_tmp"`
	Timeout      *string  `yaml:"timeout"`
	Ledger       *string  `yaml:"ledger"`
	MetricsFile  *string  `yaml:"metrics_file"`
	SplitBin     *string  `yaml:"split_bin"`
	RscriptBin   *string  `yaml:"rscript_bin"`
	NATSURL      *string  `yaml:"nats_url"`
	EventSubject *string  `yaml:"event_subject"`
}

// loadConfig resolves settings with precedence flags > config file >
// environment > defaults.
func loadConfig(args []string, stderr io.Writer) (config, error) {
	cfg := config{
		TmpDir:       getenv("PVF_TMPDIR", os.TempDir()),
		Ledger:       getenv("PVF_LEDGER", ""),
		MetricsFile:  getenv("PVF_METRICS_FILE", ""),
		SplitBin:     getenv("PVF_SPLIT_BIN", "fu-split"),
		RscriptBin:   getenv("PVF_RSCRIPT_BIN", "Rscript"),
		NATSURL:      getenv("NATS_URL", ""),
		EventSubject: getenv("PVF_EVENT_SUBJECT", "parallel-virfinder.runs"),
	}

	var err error
	if cfg.Parallel, err = parseInt(getenv("PVF_PARALLEL", "4"), "PVF_PARALLEL"); err != nil {
		return config{}, err
	}
	if cfg.MinScore, err = parseFloat(getenv("PVF_MIN_SCORE", "0.9"), "PVF_MIN_SCORE"); err != nil {
		return config{}, err
	}
	if cfg.MaxPValue, err = parseFloat(getenv("PVF_MAX_P_VALUE", "0.05"), "PVF_MAX_P_VALUE"); err != nil {
		return config{}, err
	}
	if cfg.Timeout, err = parseDuration(getenv("PVF_TIMEOUT", "0"), "PVF_TIMEOUT"); err != nil {
		return config{}, err
	}

	fs := flag.NewFlagSet("parallel-virfinder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: parallel-virfinder -i contigs.fasta -o virfinder.csv [options]\n\n")
		fs.PrintDefaults()
	}

	stringFlag(fs, &cfg.Input, "i", "input", cfg.Input, "input FASTA file (plain or gzipped)")
	stringFlag(fs, &cfg.Output, "o", "output", cfg.Output, "output CSV file")
	stringFlag(fs, &cfg.Fasta, "f", "fasta", cfg.Fasta, "write passing sequences to this FASTA file")
	intFlag(fs, &cfg.Parallel, "n", "parallel", cfg.Parallel, "number of chunks and concurrent VirFinder processes (at least 2)")
	stringFlag(fs, &cfg.TmpDir, "t", "tmpdir", cfg.TmpDir, "directory for temporary files")
	floatFlag(fs, &cfg.MinScore, "s", "min-score", cfg.MinScore, "minimum VirFinder score")
	floatFlag(fs, &cfg.MaxPValue, "p", "max-p-value", cfg.MaxPValue, "maximum p-value")
	boolFlag(fs, &cfg.NoCheck, "", "no-check", false, "skip dependency checks")
	boolFlag(fs, &cfg.Verbose, "v", "verbose", false, "verbose output (keeps temporary files)")
	boolFlag(fs, &cfg.Debug, "d", "debug", false, "debug output (keeps temporary files)")
	boolFlag(fs, &cfg.KeepTmp, "", "keep-tmp", false, "keep temporary files")
	boolFlag(fs, &cfg.Version, "", "version", false, "print version and exit")
	stringFlag(fs, &cfg.ConfigPath, "", "config", "", "YAML configuration file")
	stringFlag(fs, &cfg.Ledger, "", "ledger", cfg.Ledger, "SQLite run ledger path")
	stringFlag(fs, &cfg.MetricsFile, "", "metrics-file", cfg.MetricsFile, "write Prometheus textfile metrics here")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "abort the run after this long (0 disables)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if cfg.ConfigPath != "" {
		if err := applyFile(&cfg, cfg.ConfigPath, set); err != nil {
			return config{}, err
		}
	}

	cfg.KeepTmp = cfg.KeepTmp || cfg.Verbose || cfg.Debug
	return cfg, nil
}

func applyFile(cfg *config, path string, set map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	unset := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return false
			}
		}
		return true
	}

	if fc.Input != nil && unset("i", "input") {
		cfg.Input = *fc.Input
	}
	if fc.Output != nil && unset("o", "output") {
		cfg.Output = *fc.Output
	}
	if fc.Fasta != nil && unset("f", "fasta") {
		cfg.Fasta = *fc.Fasta
	}
	if fc.Parallel != nil && unset("n", "parallel") {
		cfg.Parallel = *fc.Parallel
	}
	if fc.TmpDir != nil && unset("t", "tmpdir") {
		cfg.TmpDir = *fc.TmpDir
	}
	if fc.MinScore != nil && unset("s", "min-score") {
		cfg.MinScore = *fc.MinScore
	}
	if fc.MaxPValue != nil && unset("p", "max-p-value") {
		cfg.MaxPValue = *fc.MaxPValue
	}
	if fc.KeepTmp != nil && unset("keep-tmp") {
		cfg.KeepTmp = *fc.KeepTmp
	}
	if fc.Timeout != nil && unset("timeout") {
		d, err := parseDuration(*fc.Timeout, "timeout")
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Timeout = d
	}
	if fc.Ledger != nil && unset("ledger") {
		cfg.Ledger = *fc.Ledger
	}
	if fc.MetricsFile != nil && unset("metrics-file") {
		cfg.MetricsFile = *fc.MetricsFile
	}
	if fc.SplitBin != nil {
		cfg.SplitBin = *fc.SplitBin
	}
	if fc.RscriptBin != nil {
		cfg.RscriptBin = *fc.RscriptBin
	}
	if fc.NATSURL != nil {
		cfg.NATSURL = *fc.NATSURL
	}
	if fc.EventSubject != nil {
		cfg.EventSubject = *fc.EventSubject
	}
	return nil
}

func (c config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Input:    c.Input,
		Output:   c.Output,
		Fasta:    c.Fasta,
		Parallel: c.Parallel,
		TmpDir:   c.TmpDir,
		Criteria: aggregate.Criteria{
			MinScore:  c.MinScore,
			MaxPValue: c.MaxPValue,
		},
		KeepTemp:   c.KeepTmp,
		SkipChecks: c.NoCheck,
		Timeout:    c.Timeout,
	}
}

func stringFlag(fs *flag.FlagSet, p *string, short, long, value, usage string) {
	fs.StringVar(p, long, value, usage)
	if short != "" {
		fs.StringVar(p, short, value, "shorthand for --"+long)
	}
}

func intFlag(fs *flag.FlagSet, p *int, short, long string, value int, usage string) {
	fs.IntVar(p, long, value, usage)
	if short != "" {
		fs.IntVar(p, short, value, "shorthand for --"+long)
	}
}

func floatFlag(fs *flag.FlagSet, p *float64, short, long string, value float64, usage string) {
	fs.Float64Var(p, long, value, usage)
	if short != "" {
		fs.Float64Var(p, short, value, "shorthand for --"+long)
	}
}

func boolFlag(fs *flag.FlagSet, p *bool, short, long string, value bool, usage string) {
	fs.BoolVar(p, long, value, usage)
	if short != "" {
		fs.BoolVar(p, short, value, "shorthand for --"+long)
	}
}

func parseInt(raw, key string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func parseFloat(raw, key string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func parseDuration(raw, key string) (time.Duration, error) {
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 30m: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
