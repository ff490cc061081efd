// Package batch runs YAML manifests of file conversions on a bounded worker
// pool.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klytics/docbridge/internal/formats/convert"
)

// Failure policies.
const (
	OnFailureContinue = "continue"
	OnFailureStop     = "stop"
)

// Manifest is a named list of conversion jobs.
type Manifest struct {
	Name string `yaml:"name" json:"name"`
	// Workers overrides the configured pool size when positive.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`
	// OutDir receives outputs of jobs that do not name one.
	OutDir     string `yaml:"out_dir,omitempty" json:"outDir,omitempty"`
	OnFailure  string `yaml:"on_failure,omitempty" json:"onFailure,omitempty"`
	Standalone bool   `yaml:"standalone,omitempty" json:"standalone,omitempty"`
	Jobs       []Job  `yaml:"jobs" json:"jobs"`
}

// Job converts one file, or every file matching a glob, to format To.
type Job struct {
	ID     string `yaml:"id" json:"id"`
	Input  string `yaml:"input" json:"input"`
	To     string `yaml:"to" json:"to"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	// Base is the original .docx an edited HTML input came from.
	Base string `yaml:"base,omitempty" json:"base,omitempty"`
}

// Task is a single file conversion planned from a job.
type Task struct {
	JobID  string
	Input  string
	Output string
	To     string
	Base   string
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("could not read manifest file %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses a manifest from YAML bytes and resolves ${{ ... }}
// references in its paths.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest YAML: %w", err)
	}
	if m.OnFailure == "" {
		m.OnFailure = OnFailureContinue
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}

	m.OutDir = interpolate(m.OutDir, &m)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		j.Input = interpolate(j.Input, &m)
		j.Output = interpolate(j.Output, &m)
		j.Base = interpolate(j.Base, &m)
	}
	return &m, nil
}

func validateManifest(m *Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("manifest is missing a 'name' field")
	}
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest %q has no jobs defined", m.Name)
	}
	if m.OnFailure != OnFailureContinue && m.OnFailure != OnFailureStop {
		return fmt.Errorf("invalid on_failure %q: use %s or %s", m.OnFailure, OnFailureContinue, OnFailureStop)
	}
	if m.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	seen := make(map[string]bool)
	for i, job := range m.Jobs {
		if job.ID == "" {
			return fmt.Errorf("job %d is missing an 'id' field", i+1)
		}
		if seen[job.ID] {
			return fmt.Errorf("duplicate job ID %q: each job must have a unique ID", job.ID)
		}
		seen[job.ID] = true

		if job.Input == "" {
			return fmt.Errorf("job %q is missing an 'input' field", job.ID)
		}
		from := convert.DetectFormat(job.Input)
		if from == "" {
			return fmt.Errorf("job %q: could not detect input format of %q", job.ID, job.Input)
		}
		if !convert.Supported(from, job.To) {
			return fmt.Errorf("job %q: unsupported conversion %s → %q", job.ID, from, job.To)
		}
		if job.Output != "" && isGlob(job.Input) {
			return fmt.Errorf("job %q: 'output' cannot be used with a glob input, use out_dir", job.ID)
		}
	}
	return nil
}

// Plan expands the jobs into tasks in manifest order. Glob inputs are
// matched relative to dir unless absolute.
func (m *Manifest) Plan(dir string) ([]Task, error) {
	var tasks []Task
	for _, job := range m.Jobs {
		pattern := resolve(dir, job.Input)
		inputs := []string{pattern}
		if isGlob(job.Input) {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("job %q: invalid glob pattern %q: %w", job.ID, job.Input, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("job %q: no files matched %q", job.ID, job.Input)
			}
			inputs = matches
		}

		for _, in := range inputs {
			t := Task{JobID: job.ID, Input: in, To: job.To}
			if job.Base != "" {
				t.Base = resolve(dir, job.Base)
			}
			switch {
			case job.Output != "":
				t.Output = resolve(dir, job.Output)
			case m.OutDir != "":
				t.Output = filepath.Join(resolve(dir, m.OutDir), filepath.Base(convert.OutputPath(in, job.To)))
			default:
				t.Output = convert.OutputPath(in, job.To)
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func isGlob(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+)\s*\}\}`)

// interpolate expands ${{ env.NAME }}, ${{ date.today }}, ${{ date.now }}
// and ${{ manifest.name }}. Unknown references are left as written.
func interpolate(s string, m *Manifest) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := interpolationPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}
		expr := strings.TrimSpace(inner[1])

		switch {
		case expr == "date.today":
			return time.Now().Format("2006-01-02")
		case expr == "date.now" || expr == "date.timestamp":
			return time.Now().Format("20060102T150405")
		case expr == "manifest.name":
			return m.Name
		case strings.HasPrefix(expr, "env."):
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}
		return match
	})
}
