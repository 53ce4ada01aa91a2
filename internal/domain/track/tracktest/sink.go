package tracktest

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/combatbgm/internal/domain/track"
)

// ErrLoadFailed is returned by Sink.Load for IDs listed in Sink.Fail.
var ErrLoadFailed = errors.New("load failed")

// Sink is a track.Sink handing out recording handles.
type Sink struct {
	Log     *Log
	Fail    map[string]bool // IDs whose Load fails
	Handles map[string]*Handle
	Polls   int
	Closed  bool
}

var _ track.Sink = (*Sink)(nil)

// NewSink creates a sink recording into a fresh Log.
func NewSink() *Sink {
	return &Sink{
		Log:     &Log{},
		Fail:    make(map[string]bool),
		Handles: make(map[string]*Handle),
	}
}

func (s *Sink) Load(t track.Track) (track.Handle, error) {
	if s.Fail[t.ID] {
		return nil, errors.Wrapf(ErrLoadFailed, "track %s", t.ID)
	}
	h := NewHandle(t.ID, s.Log)
	s.Handles[t.ID] = h
	return h, nil
}

func (s *Sink) Poll() { s.Polls++ }

func (s *Sink) Close() error {
	s.Closed = true
	return nil
}
