package signal

import (
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Scenario is the YAML form of a timeline.
//
//	name: skirmish
//	duration: 60s
//	steps:
//	  - {at: 0s, action: switch, state: game}
//	  - {at: 10s, threat: true}
//	  - {at: 11s, threat: false}
type Scenario struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration" validate:"gte=0"`
	Steps    []Step        `yaml:"steps" validate:"dive"`
}

// Step changes the threat signal, issues an action, or both.
type Step struct {
	At     time.Duration `yaml:"at" validate:"gte=0"`
	Threat *bool         `yaml:"threat"`
	Action string        `yaml:"action"`
	State  string        `yaml:"state"`
	Weight int           `yaml:"weight" validate:"gte=0"`
}

type timedStep struct {
	at     time.Duration
	threat *bool
	action *Action
}

// Timeline replays a scenario. The threat level holds until a later step
// changes it; each action is issued once, on the first tick at or after its time.
type Timeline struct {
	name     string
	duration time.Duration
	steps    []timedStep
	next     int
	threat   bool
}

// LoadTimeline reads a scenario file.
func LoadTimeline(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseTimeline(data)
}

// ParseTimeline parses a YAML scenario.
func ParseTimeline(data []byte) (*Timeline, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario")
	}
	return NewTimeline(sc)
}

// NewTimeline validates a scenario and orders its steps by time.
func NewTimeline(sc Scenario) (*Timeline, error) {
	if err := validator.New().Struct(sc); err != nil {
		return nil, errors.Wrap(err, "scenario validation failed")
	}

	steps := make([]timedStep, 0, len(sc.Steps))
	for i, s := range sc.Steps {
		ts := timedStep{at: s.At, threat: s.Threat}
		if s.Action != "" {
			a, err := NewAction(s.Action, s.State, s.Weight)
			if err != nil {
				return nil, errors.Wrapf(err, "step %d", i)
			}
			ts.action = &a
		}
		if ts.threat == nil && ts.action == nil {
			return nil, errors.Newf("step %d: neither threat nor action is set", i)
		}
		steps = append(steps, ts)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].at < steps[j].at })

	zlog.Debug().Msgf("signal: timeline loaded: name=%s steps=%d duration=%v", sc.Name, len(steps), sc.Duration)

	return &Timeline{
		name:     sc.Name,
		duration: sc.Duration,
		steps:    steps,
	}, nil
}

// Name returns the scenario name.
func (t *Timeline) Name() string {
	return t.name
}

// Duration returns the scenario length, or zero when unbounded.
func (t *Timeline) Duration() time.Duration {
	return t.duration
}

// Sample consumes every step due at elapsed.
func (t *Timeline) Sample(elapsed time.Duration) (Frame, error) {
	var f Frame
	for t.next < len(t.steps) && t.steps[t.next].at <= elapsed {
		s := t.steps[t.next]
		t.next++
		if s.threat != nil {
			t.threat = *s.threat
		}
		if s.action != nil {
			f.Actions = append(f.Actions, *s.action)
		}
	}
	f.Threat = t.threat
	return f, nil
}

// Remaining returns the number of steps not yet consumed.
func (t *Timeline) Remaining() int {
	return len(t.steps) - t.next
}
