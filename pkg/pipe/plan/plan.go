package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/exec"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the key of the root routine when the plan sets none.
const DefaultKey = "plan"

var (
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrUnsupportedFormat = errors.New("unsupported plan format")
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the decoder from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Plan is the root of a declarative pipeline.
type Plan struct {
	Key         string         `yaml:"key" toml:"key"`
	Title       string         `yaml:"title" toml:"title"`
	Strategy    string         `yaml:"strategy" toml:"strategy"`
	Concurrency int            `yaml:"concurrency" toml:"concurrency"`
	LIFO        bool           `yaml:"lifo" toml:"lifo"`
	Value       any            `yaml:"value" toml:"value"`
	Context     map[string]any `yaml:"context" toml:"context"`
	Defaults    map[string]any `yaml:"defaults" toml:"defaults"`
	Tasks       []Task         `yaml:"tasks" toml:"tasks"`
	Routines    []Routine      `yaml:"routines" toml:"routines"`
}

type Routine struct {
	Key         string    `yaml:"key" toml:"key"`
	Title       string    `yaml:"title" toml:"title"`
	Strategy    string    `yaml:"strategy" toml:"strategy"`
	Concurrency int       `yaml:"concurrency" toml:"concurrency"`
	LIFO        bool      `yaml:"lifo" toml:"lifo"`
	Skip        bool      `yaml:"skip" toml:"skip"`
	Tasks       []Task    `yaml:"tasks" toml:"tasks"`
	Routines    []Routine `yaml:"routines" toml:"routines"`
}

// Task runs either a shell command or a Lua chunk. A task with neither is
// skipped.
type Task struct {
	Title  string         `yaml:"title" toml:"title"`
	Run    string         `yaml:"run" toml:"run"`
	Lua    string         `yaml:"lua" toml:"lua"`
	Skip   bool           `yaml:"skip" toml:"skip"`
	Config map[string]any `yaml:"config" toml:"config"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}

	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan.
func Parse(data []byte, format Format) (*Plan, error) {
	var p Plan

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the whole tree and reports the first problem with its path.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title: %w", ErrInvalidPlan, pipe.ErrInvalidTitle)
	}
	if err := checkScheduling(p.Strategy, p.Concurrency); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if err := checkTasks("", p.Tasks); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if err := checkRoutines("", p.Routines); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return nil
}

// NewContext returns the shared context seeded with the plan's values.
func (p *Plan) NewContext(parent context.Context) *pipe.Context {
	return pipe.NewContext(parent, p.Context)
}

func (p *Plan) key() string {
	if p.Key == "" {
		return DefaultKey
	}
	return p.Key
}

func (r *Routine) title() string {
	if r.Title == "" {
		return r.Key
	}
	return r.Title
}

func checkScheduling(strategy string, concurrency int) error {
	if _, err := exec.ParseStrategy(strategy); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if concurrency < 0 {
		return fmt.Errorf("concurrency: must not be negative, got %d", concurrency)
	}
	return nil
}

func checkTasks(prefix string, tasks []Task) error {
	for i, t := range tasks {
		path := fmt.Sprintf("%stasks[%d]", prefix, i)

		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%s: %w", path, pipe.ErrInvalidTitle)
		}
		if t.Run != "" && t.Lua != "" {
			return fmt.Errorf("%s: run and lua are mutually exclusive", path)
		}
	}
	return nil
}

func checkRoutines(prefix string, routines []Routine) error {
	seen := make(map[string]struct{}, len(routines))

	for i, r := range routines {
		path := fmt.Sprintf("%sroutines[%d]", prefix, i)

		if strings.TrimSpace(r.Key) == "" {
			return fmt.Errorf("%s: %w", path, pipe.ErrInvalidKey)
		}
		if _, ok := seen[r.Key]; ok {
			return fmt.Errorf("%s: %w: %q", path, pipe.ErrDuplicateKey, r.Key)
		}
		seen[r.Key] = struct{}{}

		if err := checkScheduling(r.Strategy, r.Concurrency); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := checkTasks(path+".", r.Tasks); err != nil {
			return err
		}
		if err := checkRoutines(path+".", r.Routines); err != nil {
			return err
		}
	}
	return nil
}
