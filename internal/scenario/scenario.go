// Package scenario runs YAML files of tool calls with expected results. The
// same files run in-process or against a remote tool server.
package scenario

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"

	"github.com/njchilds90/symcanon"
)

// Scenario is one YAML file.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`

	path string
}

// Step is a tool request plus what the response must contain.
type Step struct {
	Name                 string `yaml:"name"`
	symcanon.ToolRequest `yaml:",inline"`
	Expect               Expect `yaml:"expect"`
}

// Expect lists the checks applied to a response. Unset fields are not
// checked; a step with no expectations only requires an error-free response.
type Expect struct {
	String *string  `yaml:"string"`
	LaTeX  *string  `yaml:"latex"`
	Value  *float64 `yaml:"value"`
	// Error is a substring the response error must contain.
	Error string `yaml:"error"`
}

// Executor runs a tool request. *client.Client satisfies it.
type Executor interface {
	Call(ctx context.Context, req symcanon.ToolRequest) (symcanon.ToolResponse, error)
}

// Local runs requests in-process.
type Local struct{}

func (Local) Call(_ context.Context, req symcanon.ToolRequest) (symcanon.ToolResponse, error) {
	return symcanon.HandleToolCall(req), nil
}

// Result is the outcome of one step.
type Result struct {
	Step     string
	Passed   bool
	Message  string
	Duration time.Duration
}

// Report is the outcome of one scenario.
type Report struct {
	Scenario string
	Path     string
	Results  []Result
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

func (r Report) Passed() bool { return r.Failed() == 0 }

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Tool == "" {
			return nil, fmt.Errorf("step %d: tool is required", i)
		}
		if st.Name == "" {
			st.Name = fmt.Sprintf("%s#%d", st.Tool, i)
		}
		st.Params = normalizeMap(st.Params)
	}
	return &sc, nil
}

// Load reads and parses the scenario at path. An unnamed scenario takes its
// path as name.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.path = path
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Discover expands doublestar patterns such as "scenarios/**/*.yaml" into a
// sorted, de-duplicated file list.
func Discover(patterns ...string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run executes every step in order. Steps do not share variables: each
// request gets its own scope on the executing side.
func Run(ctx context.Context, exec Executor, sc *Scenario) Report {
	rep := Report{Scenario: sc.Name, Path: sc.path, Results: make([]Result, 0, len(sc.Steps))}
	for _, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			rep.Results = append(rep.Results, Result{Step: st.Name, Message: err.Error()})
			continue
		}
		start := time.Now()
		resp, err := exec.Call(ctx, st.ToolRequest)
		res := Result{Step: st.Name, Duration: time.Since(start)}
		if err != nil {
			res.Message = err.Error()
		} else {
			res.Message = st.Expect.check(resp)
			res.Passed = res.Message == ""
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

// check returns "" when resp satisfies e, otherwise what went wrong.
func (e Expect) check(resp symcanon.ToolResponse) string {
	var problems []string
	if e.Error != "" {
		if !strings.Contains(resp.Error, e.Error) {
			problems = append(problems, fmt.Sprintf("error %q does not contain %q", resp.Error, e.Error))
		}
		return strings.Join(problems, "; ")
	}
	if resp.Error != "" {
		return "unexpected error: " + resp.Error
	}
	if e.String != nil && resp.String != *e.String {
		problems = append(problems, fmt.Sprintf("string: got %q, want %q", resp.String, *e.String))
	}
	if e.LaTeX != nil && resp.LaTeX != *e.LaTeX {
		problems = append(problems, fmt.Sprintf("latex: got %q, want %q", resp.LaTeX, *e.LaTeX))
	}
	if e.Value != nil {
		v, ok := resp.Result.(float64)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("value: result %v is not a number", resp.Result))
		case math.Abs(v-*e.Value) > symcanon.Epsilon:
			problems = append(problems, fmt.Sprintf("value: got %g, want %g", v, *e.Value))
		}
	}
	return strings.Join(problems, "; ")
}

// normalizeMap rewrites YAML integers as float64, the number type the
// tool layer and JSON decoding use.
func normalizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return normalizeMap(t)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	}
	return v
}
