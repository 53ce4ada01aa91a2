package notification

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/combatbgm/internal/app/soundtrack"
)

type recordingStream struct {
	mu  sync.Mutex
	got []uint64
}

func (r *recordingStream) Send(n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n.SequenceNo)
	return nil
}

func (r *recordingStream) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.got...)
}

func TestManager_BroadcastStampsSequence(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{}
	m.Subscribe(a)
	m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	for i := 0; i < 3; i++ {
		m.Broadcast(&Notification{Event: soundtrack.Event{Type: soundtrack.EventTrackStarted}})
	}

	assert.Equal(t, []uint64{1, 2, 3}, a.seqs())
	assert.Equal(t, []uint64{1, 2, 3}, b.seqs())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	id := m.Subscribe(a)

	m.Unsubscribe(id)
	m.Broadcast(&Notification{})

	assert.Empty(t, a.seqs())
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_FailingStreamDoesNotBlockOthers(t *testing.T) {
	m := NewManager()
	ok := &recordingStream{}
	m.Subscribe(StreamFunc(func(*Notification) error { return errors.New("broken pipe") }))
	m.Subscribe(ok)

	m.Broadcast(&Notification{})
	assert.Equal(t, []uint64{1}, ok.seqs())
}

func TestManager_Send(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	id := m.Subscribe(a)

	require.NoError(t, m.Send(id, &Notification{SequenceNo: 7}))
	require.NoError(t, m.Send("missing", &Notification{SequenceNo: 8}))
	assert.Equal(t, []uint64{7}, a.seqs())
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
