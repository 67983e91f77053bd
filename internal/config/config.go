// Package config holds the on-disk layout, command templates, timeouts and
// solver address used by a pipeline invocation.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory when
// --config is not given. A missing file means defaults.
const DefaultPath = "looprig.yaml"

// Solver service variants.
const (
	VariantIterative  = "iterative"
	VariantSingleShot = "single-shot"
)

// Placeholders expanded in command templates.
const (
	PlaceholderFile = "{file}"
	PlaceholderOut  = "{out}"
	PlaceholderJar  = "{jar}"
	PlaceholderCase = "{case}"
	PlaceholderHost = "{solver_host}"
	PlaceholderPort = "{solver_port}"
)

// Config is the full description of one pipeline layout.
type Config struct {
	WorkDir  string   `json:"workdir" yaml:"workdir"`
	Corpus   Corpus   `json:"corpus" yaml:"corpus"`
	Artifact Artifact `json:"artifact" yaml:"artifact"`
	Exchange Exchange `json:"exchange" yaml:"exchange"`
	Output   Output   `json:"output" yaml:"output"`
	Commands Commands `json:"commands" yaml:"commands"`
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
	Solver   Solver   `json:"solver" yaml:"solver"`
	Store    Store    `json:"store" yaml:"store"`
}

// Corpus locates the test programs and their compiled output.
type Corpus struct {
	SourceDir string `json:"source_dir" yaml:"source_dir"`
	OutDir    string `json:"out_dir" yaml:"out_dir"`
	Extension string `json:"extension" yaml:"extension"`
}

// Artifact names the analysis jar and where to provision it from.
type Artifact struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
}

// Exchange lists the well-known directories and log file every analysis run
// writes into. Isolate clears the directories before each test case.
type Exchange struct {
	Dirs    []string `json:"dirs" yaml:"dirs"`
	LogFile string   `json:"log_file" yaml:"log_file"`
	Isolate bool     `json:"isolate,omitempty" yaml:"isolate,omitempty"`
}

// Output is the aggregate root holding one bundle per test case, and the
// archive built from it.
type Output struct {
	Root    string `json:"root" yaml:"root"`
	Archive string `json:"archive,omitempty" yaml:"archive,omitempty"`
}

// Commands are argv templates; see the Placeholder constants.
type Commands struct {
	Compile []string `json:"compile" yaml:"compile"`
	Run     []string `json:"run" yaml:"run"`
}

// Timeouts bound each external invocation. Zero means no deadline.
type Timeouts struct {
	Compile Duration `json:"compile,omitempty" yaml:"compile,omitempty"`
	Run     Duration `json:"run,omitempty" yaml:"run,omitempty"`
}

// Solver is the address and lifecycle variant of the solving service.
type Solver struct {
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Variant string `json:"variant" yaml:"variant"`
}

// Store is the run ledger location.
type Store struct {
	Path string `json:"path" yaml:"path"`
}

// Default returns the layout the regression scripts have always used.
func Default() *Config {
	return &Config{
		WorkDir: ".",
		Corpus: Corpus{
			SourceDir: filepath.Join("test_programs", "src"),
			OutDir:    filepath.Join("test_programs", "out"),
			Extension: ".java",
		},
		Artifact: Artifact{
			Name:   "MPCLoopParallelization.jar",
			Source: filepath.Join("target", "MPCLoopParallelization.jar"),
		},
		Exchange: Exchange{
			Dirs:    []string{"graphs", "z3_python"},
			LogFile: "output.log",
		},
		Output: Output{Root: "all_tests"},
		Commands: Commands{
			Compile: []string{"javac", PlaceholderFile, "-g", "-d", PlaceholderOut, "-cp", PlaceholderOut},
			Run:     []string{"java", "-jar", PlaceholderJar, "-c", PlaceholderCase},
		},
		Solver: Solver{Host: "localhost", Port: 25241, Variant: VariantIterative},
		Store:  Store{Path: filepath.Join(".looprig", "looprig.db")},
	}
}

// Validate reports the first structural problem with c.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Corpus.SourceDir) == "":
		return fmt.Errorf("corpus.source_dir is required")
	case strings.TrimSpace(c.Corpus.OutDir) == "":
		return fmt.Errorf("corpus.out_dir is required")
	case strings.TrimSpace(c.Artifact.Name) == "":
		return fmt.Errorf("artifact.name is required")
	case filepath.Base(c.Artifact.Name) != c.Artifact.Name:
		return fmt.Errorf("artifact.name must be a bare file name (got %q)", c.Artifact.Name)
	case strings.TrimSpace(c.Exchange.LogFile) == "":
		return fmt.Errorf("exchange.log_file is required")
	case strings.TrimSpace(c.Output.Root) == "":
		return fmt.Errorf("output.root is required")
	case len(c.Commands.Compile) == 0:
		return fmt.Errorf("commands.compile is required")
	case len(c.Commands.Run) == 0:
		return fmt.Errorf("commands.run is required")
	case c.Timeouts.Compile < 0 || c.Timeouts.Run < 0:
		return fmt.Errorf("timeouts must not be negative")
	case c.Solver.Port <= 0 || c.Solver.Port > 65535:
		return fmt.Errorf("solver.port %d out of range", c.Solver.Port)
	}
	for _, d := range c.Exchange.Dirs {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("exchange.dirs must not contain empty entries")
		}
	}
	switch c.Solver.Variant {
	case VariantIterative, VariantSingleShot:
	default:
		return fmt.Errorf("solver.variant %q (expected %s|%s)", c.Solver.Variant, VariantIterative, VariantSingleShot)
	}
	return nil
}

// Path resolves p against WorkDir unless it is already absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.WorkDir, p)
}

// ArchivePath is Output.Archive, or "<root>.tgz" next to the root.
func (c *Config) ArchivePath() string {
	if c.Output.Archive != "" {
		return c.Path(c.Output.Archive)
	}
	return c.Path(c.Output.Root) + ".tgz"
}

// SolverAddr is host:port of the solving service.
func (c *Config) SolverAddr() string {
	return net.JoinHostPort(c.Solver.Host, strconv.Itoa(c.Solver.Port))
}

// Expand substitutes placeholders in an argv template. Unknown placeholders
// are left as-is.
func Expand(tmpl []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// Duration is a time.Duration that reads "90s"-style strings from YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
