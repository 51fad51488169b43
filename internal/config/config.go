package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/charts"
	"github.com/KaramelBytes/genusdiff/internal/diffabund"
	"github.com/KaramelBytes/genusdiff/internal/utils"
)

// EnvPrefix prefixes every environment override, e.g. GENUSDIFF_ALPHA.
const EnvPrefix = "GENUSDIFF"

// Global configuration structure.
type Global struct {
	InputDir         string `mapstructure:"input_dir" yaml:"input_dir"`
	OutputDir        string `mapstructure:"output_dir" yaml:"output_dir"`
	CountsFile       string `mapstructure:"counts_file" yaml:"counts_file"`
	MetadataFile     string `mapstructure:"metadata_file" yaml:"metadata_file"`
	SecondCountsPath string `mapstructure:"second_counts_path" yaml:"second_counts_path"`

	SampleColumn  string   `mapstructure:"sample_column" yaml:"sample_column"`
	GroupColumn   string   `mapstructure:"group_column" yaml:"group_column"`
	CaseGroups    []string `mapstructure:"case_groups" yaml:"case_groups"`
	ControlGroups []string `mapstructure:"control_groups" yaml:"control_groups"`

	// Statistics
	Pseudocount          float64 `mapstructure:"pseudocount" yaml:"pseudocount"`
	Alpha                float64 `mapstructure:"alpha" yaml:"alpha"`
	LFCThreshold         float64 `mapstructure:"lfc_threshold" yaml:"lfc_threshold"`
	TopN                 int     `mapstructure:"top_n" yaml:"top_n"`
	TTest                string  `mapstructure:"ttest" yaml:"ttest"`
	ZeroTotal            string  `mapstructure:"zero_total" yaml:"zero_total"`
	MergeDuplicateGenera bool    `mapstructure:"merge_duplicate_genera" yaml:"merge_duplicate_genera"`
	Workers              int     `mapstructure:"workers" yaml:"workers"`

	// Charts
	Plots         bool   `mapstructure:"plots" yaml:"plots"`
	PlotFormat    string `mapstructure:"plot_format" yaml:"plot_format"`
	BarSource     string `mapstructure:"bar_source" yaml:"bar_source"`
	HistogramBins int    `mapstructure:"histogram_bins" yaml:"histogram_bins"`
}

var defaults = map[string]any{
	"input_dir":              ".",
	"output_dir":             ".",
	"counts_file":            "genera.counts.tsv",
	"metadata_file":          "metadata.tsv",
	"second_counts_path":     "",
	"sample_column":          "Sample",
	"group_column":           "Study.Group",
	"case_groups":            []string{"UC", "CD"},
	"control_groups":         []string{"nonIBD"},
	"pseudocount":            1e-6,
	"alpha":                  0.05,
	"lfc_threshold":          1.0,
	"top_n":                  10,
	"ttest":                  "welch",
	"zero_total":             "nan",
	"merge_duplicate_genera": false,
	"workers":                1,
	"plots":                  true,
	"plot_format":            "png",
	"bar_source":             "kruskal",
	"histogram_bins":         50,
}

// Keys lists every configuration key in sorted order.
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dir returns ~/.genusdiff.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".genusdiff"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.genusdiff/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate checks value ranges and enumerations.
func (c *Global) Validate() error {
	if strings.TrimSpace(c.SampleColumn) == "" || strings.TrimSpace(c.GroupColumn) == "" {
		return fmt.Errorf("sample_column and group_column must be set")
	}
	if len(c.CaseGroups) == 0 || len(c.ControlGroups) == 0 {
		return fmt.Errorf("case_groups and control_groups must not be empty")
	}
	if c.Pseudocount < 0 {
		return fmt.Errorf("invalid pseudocount: %v (must be >= 0)", c.Pseudocount)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("invalid alpha: %v (must be in (0,1))", c.Alpha)
	}
	if c.LFCThreshold < 0 {
		return fmt.Errorf("invalid lfc_threshold: %v", c.LFCThreshold)
	}
	if c.TopN < 1 {
		return fmt.Errorf("invalid top_n: %d", c.TopN)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.HistogramBins < 1 {
		return fmt.Errorf("invalid histogram_bins: %d", c.HistogramBins)
	}
	if _, err := diffabund.ParseTTestKind(c.TTest); err != nil {
		return err
	}
	if _, err := abundance.ParseZeroTotalPolicy(c.ZeroTotal); err != nil {
		return err
	}
	if !charts.ValidFormat(c.PlotFormat) {
		return fmt.Errorf("invalid plot_format %q (use %s)", c.PlotFormat, strings.Join(charts.Formats, "|"))
	}
	switch c.BarSource {
	case "kruskal", "ttest":
	default:
		return fmt.Errorf("invalid bar_source %q (use kruskal|ttest)", c.BarSource)
	}
	return nil
}

// Set assigns one key from its string form. Lists are comma separated.
func (c *Global) Set(key, val string) error {
	var err error
	switch key {
	case "input_dir":
		c.InputDir = val
	case "output_dir":
		c.OutputDir = val
	case "counts_file":
		c.CountsFile = val
	case "metadata_file":
		c.MetadataFile = val
	case "second_counts_path":
		c.SecondCountsPath = val
	case "sample_column":
		c.SampleColumn = val
	case "group_column":
		c.GroupColumn = val
	case "case_groups":
		c.CaseGroups = splitList(val)
	case "control_groups":
		c.ControlGroups = splitList(val)
	case "pseudocount":
		c.Pseudocount, err = parseFloat(key, val)
	case "alpha":
		c.Alpha, err = parseFloat(key, val)
	case "lfc_threshold":
		c.LFCThreshold, err = parseFloat(key, val)
	case "top_n":
		c.TopN, err = parseInt(key, val)
	case "ttest":
		c.TTest = strings.ToLower(val)
	case "zero_total":
		c.ZeroTotal = strings.ToLower(val)
	case "merge_duplicate_genera":
		c.MergeDuplicateGenera, err = parseBool(key, val)
	case "workers":
		c.Workers, err = parseInt(key, val)
	case "plots":
		c.Plots, err = parseBool(key, val)
	case "plot_format":
		c.PlotFormat = strings.ToLower(val)
	case "bar_source":
		c.BarSource = strings.ToLower(val)
	case "histogram_bins":
		c.HistogramBins, err = parseInt(key, val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	return c.Validate()
}

// Get renders one key's value as Set would accept it.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "input_dir":
		return c.InputDir, nil
	case "output_dir":
		return c.OutputDir, nil
	case "counts_file":
		return c.CountsFile, nil
	case "metadata_file":
		return c.MetadataFile, nil
	case "second_counts_path":
		return c.SecondCountsPath, nil
	case "sample_column":
		return c.SampleColumn, nil
	case "group_column":
		return c.GroupColumn, nil
	case "case_groups":
		return strings.Join(c.CaseGroups, ","), nil
	case "control_groups":
		return strings.Join(c.ControlGroups, ","), nil
	case "pseudocount":
		return strconv.FormatFloat(c.Pseudocount, 'g', -1, 64), nil
	case "alpha":
		return strconv.FormatFloat(c.Alpha, 'g', -1, 64), nil
	case "lfc_threshold":
		return strconv.FormatFloat(c.LFCThreshold, 'g', -1, 64), nil
	case "top_n":
		return strconv.Itoa(c.TopN), nil
	case "ttest":
		return c.TTest, nil
	case "zero_total":
		return c.ZeroTotal, nil
	case "merge_duplicate_genera":
		return strconv.FormatBool(c.MergeDuplicateGenera), nil
	case "workers":
		return strconv.Itoa(c.Workers), nil
	case "plots":
		return strconv.FormatBool(c.Plots), nil
	case "plot_format":
		return c.PlotFormat, nil
	case "bar_source":
		return c.BarSource, nil
	case "histogram_bins":
		return strconv.Itoa(c.HistogramBins), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// CountsPath joins the input directory and the counts file name.
func (c *Global) CountsPath() string { return resolve(c.InputDir, c.CountsFile) }

// MetadataPath joins the input directory and the metadata file name.
func (c *Global) MetadataPath() string { return resolve(c.InputDir, c.MetadataFile) }

func resolve(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseFloat(key, val string) (float64, error) {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %v", key, val)
	}
	return f, nil
}

func parseInt(key, val string) (int, error) {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %v", key, val)
	}
	return i, nil
}

func parseBool(key, val string) (bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %v", key, val)
	}
	return b, nil
}
