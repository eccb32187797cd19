package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/sfbuilder/colony/pkg/goals"
)

// DefaultScriptTimeout bounds one call to a script's score function.
const DefaultScriptTimeout = 5 * time.Second

// maxExecutionSteps bounds a runaway script independently of the timeout.
const maxExecutionSteps = 10_000_000

// ScriptScorer evaluates a Starlark script's score(objects) function.
//
// Each object is a struct with fields kind, goal_index, required, x, y and z.
// The predeclared stats dict maps kind names to structs of the catalog's
// per-kind contributions. score returns a dict or struct with any of the
// fields viability, happiness, power and sustenance; missing fields are 0.
//
//	def score(objects):
//	    total = {"viability": 0, "happiness": 1, "power": 0, "sustenance": 0}
//	    for o in objects:
//	        s = stats[o.kind]
//	        total["viability"] += s.viability
//	        ...
//	    return total
type ScriptScorer struct {
	name    string
	timeout time.Duration
	score   starlark.Callable

	mu sync.Mutex
}

// LoadScriptScorer reads and compiles the script at path.
func LoadScriptScorer(path string, timeout time.Duration, stats map[goals.ObjectType]goals.Scores) (*ScriptScorer, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring script: %w", err)
	}
	return NewScriptScorer(filepath.Base(path), string(src), timeout, stats)
}

// NewScriptScorer executes the script's top level and looks up score.
func NewScriptScorer(name, script string, timeout time.Duration, stats map[goals.ObjectType]goals.Scores) (*ScriptScorer, error) {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"stats":  statsDict(stats),
	}

	thread := newThread(name)
	globals, err := starlark.ExecFile(thread, name, script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	fn, ok := globals["score"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s: script must define a score(objects) function", name)
	}

	return &ScriptScorer{
		name:    name,
		timeout: timeout,
		score:   fn,
	}, nil
}

// Score implements Scorer.
func (s *ScriptScorer) Score(ctx context.Context, objects []goals.PlacedObject) (goals.Scores, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evalCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	thread := newThread(s.name)
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", s.timeout))
	})
	defer stop()

	result, err := starlark.Call(thread, s.score, starlark.Tuple{objectList(objects)}, nil)
	if err != nil {
		if errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return goals.Scores{}, fmt.Errorf("starlark execution timeout: %w", err)
		}
		return goals.Scores{}, fmt.Errorf("score failed: %w", err)
	}

	return scoresFrom(result)
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Suppress print for security
		},
	}
}

func objectList(objects []goals.PlacedObject) *starlark.List {
	items := make([]starlark.Value, len(objects))
	for i, obj := range objects {
		items[i] = starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"kind":       starlark.String(obj.Kind.String()),
			"goal_index": starlark.MakeInt(obj.GoalIndex),
			"required":   starlark.Bool(obj.Required),
			"x":          starlark.Float(obj.Position.X),
			"y":          starlark.Float(obj.Position.Y),
			"z":          starlark.Float(obj.Position.Z),
		})
	}
	return starlark.NewList(items)
}

func statsDict(stats map[goals.ObjectType]goals.Scores) *starlark.Dict {
	dict := starlark.NewDict(len(stats))
	for kind, s := range stats {
		_ = dict.SetKey(starlark.String(kind.String()), starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"viability":  starlark.Float(s.Viability),
			"happiness":  starlark.Float(s.Happiness),
			"power":      starlark.Float(s.Power),
			"sustenance": starlark.Float(s.Sustenance),
		}))
	}
	dict.Freeze()
	return dict
}

// scoresFrom converts the value returned by score.
func scoresFrom(v starlark.Value) (goals.Scores, error) {
	fields := map[string]*float64{}
	var out goals.Scores
	fields["viability"] = &out.Viability
	fields["happiness"] = &out.Happiness
	fields["power"] = &out.Power
	fields["sustenance"] = &out.Sustenance

	switch val := v.(type) {
	case *starlark.Dict:
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return goals.Scores{}, fmt.Errorf("score result keys must be strings, got %s", item[0].Type())
			}
			if err := setField(fields, string(key), item[1]); err != nil {
				return goals.Scores{}, err
			}
		}
	case *starlarkstruct.Struct:
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return goals.Scores{}, err
			}
			if err := setField(fields, name, attr); err != nil {
				return goals.Scores{}, err
			}
		}
	default:
		return goals.Scores{}, fmt.Errorf("score must return a dict or struct, got %s", v.Type())
	}

	return out, nil
}

func setField(fields map[string]*float64, name string, v starlark.Value) error {
	dst, ok := fields[name]
	if !ok {
		return fmt.Errorf("score result has unknown field %q", name)
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return fmt.Errorf("score result field %q must be a number, got %s", name, v.Type())
	}
	*dst = f
	return nil
}
