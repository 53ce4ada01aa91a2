package signal

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// The script defines sample(ctx, state) and, optionally, a global duration in
// seconds. ctx holds elapsed (float seconds) and tick (int); state is a map kept
// across calls. sample returns a bool or a map:
//
//	{threat: true, actions: [{action: "switch", state: "battle"}]}
const scriptDispatch = `
if __phase == "sample" {
	__out = sample(__ctx, __state)
}
`

type scriptOutput struct {
	Threat  bool           `mapstructure:"threat"`
	Actions []scriptAction `mapstructure:"actions"`
}

type scriptAction struct {
	Action string `mapstructure:"action"`
	State  string `mapstructure:"state"`
	Weight int    `mapstructure:"weight"`
}

// Script is a source computed by a tengo script.
type Script struct {
	compiled *tengo.Compiled
	state    *tengo.Map
	tick     int64
	duration time.Duration
}

// LoadScript reads and compiles a script file.
func LoadScript(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script file")
	}
	return NewScript(src)
}

// NewScript compiles src and evaluates its top level once.
func NewScript(src []byte) (*Script, error) {
	script := tengo.NewScript(append(append([]byte{}, src...), scriptDispatch...))
	_ = script.Add("__phase", "")
	_ = script.Add("__ctx", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	_ = script.Add("__out", nil)

	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile script")
	}

	s := &Script{
		compiled: compiled,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
	}

	if err := s.run("init", map[string]any{}); err != nil {
		return nil, errors.Wrap(err, "failed to evaluate script")
	}
	if !compiled.IsDefined("sample") {
		return nil, errors.New("script does not define sample(ctx, state)")
	}
	if compiled.IsDefined("duration") {
		secs := compiled.Get("duration").Float()
		if secs < 0 {
			return nil, errors.Newf("script duration must not be negative: %v", secs)
		}
		s.duration = time.Duration(secs * float64(time.Second))
	}

	zlog.Debug().Msgf("signal: script compiled: duration=%v", s.duration)
	return s, nil
}

// Duration returns the script's declared length, or zero when unbounded.
func (s *Script) Duration() time.Duration {
	return s.duration
}

// Sample calls sample(ctx, state).
func (s *Script) Sample(elapsed time.Duration) (Frame, error) {
	ctx := map[string]any{
		"elapsed": elapsed.Seconds(),
		"tick":    s.tick,
	}
	s.tick++

	if err := s.compiled.Set("__out", nil); err != nil {
		return Frame{}, err
	}
	if err := s.run("sample", ctx); err != nil {
		return Frame{}, errors.Wrap(err, "script sample failed")
	}
	return decodeOutput(s.compiled.Get("__out"))
}

func (s *Script) run(phase string, ctx map[string]any) error {
	if err := s.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := s.compiled.Set("__ctx", ctx); err != nil {
		return err
	}
	if err := s.compiled.Set("__state", s.state); err != nil {
		return err
	}
	return s.compiled.Run()
}

func decodeOutput(v *tengo.Variable) (Frame, error) {
	if v == nil || v.IsUndefined() {
		return Frame{}, errors.New("sample returned no value")
	}

	switch out := v.Value().(type) {
	case bool:
		return Frame{Threat: out}, nil
	case map[string]any:
		var so scriptOutput
		if err := mapstructure.WeakDecode(out, &so); err != nil {
			return Frame{}, errors.Wrap(err, "failed to decode sample result")
		}
		f := Frame{Threat: so.Threat}
		for i, sa := range so.Actions {
			a, err := NewAction(sa.Action, sa.State, sa.Weight)
			if err != nil {
				return Frame{}, errors.Wrapf(err, "sample action %d", i)
			}
			f.Actions = append(f.Actions, a)
		}
		return f, nil
	default:
		return Frame{}, errors.Newf("sample returned %s, want bool or map", v.ValueType())
	}
}
