package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/waitroom-api/internal/model"
)

type recordingSubscriber struct {
	mu      sync.Mutex
	signals []model.Signal
}

func (r *recordingSubscriber) Notify(sig model.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
}

func (r *recordingSubscriber) received() []model.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

func TestMemoryHubFansOutToGroupIncludingPublisher(t *testing.T) {
	h := NewMemoryHub(zerolog.Nop())
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	other := &recordingSubscriber{}

	h.Join(7, a)
	h.Join(7, b)
	h.Join(9, other)

	require.NoError(t, h.Publish(context.Background(), 7, model.Signal{Kind: model.SignalRefresh}))

	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, other.received())
}

func TestMemoryHubLeaveStopsDelivery(t *testing.T) {
	h := NewMemoryHub(zerolog.Nop())
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}

	h.Join(7, a)
	h.Join(7, b)
	h.Leave(7, a)

	require.NoError(t, h.Publish(context.Background(), 7, model.Signal{Kind: model.SignalRefresh}))

	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
}

func TestMemoryHubPublishToEmptyGroup(t *testing.T) {
	h := NewMemoryHub(zerolog.Nop())
	assert.NoError(t, h.Publish(context.Background(), 42, model.Signal{Kind: model.SignalRefresh}))
}

func TestMemoryHubPassThroughPayload(t *testing.T) {
	h := NewMemoryHub(zerolog.Nop())
	a := &recordingSubscriber{}
	h.Join(7, a)

	sig := model.Signal{
		Kind:        model.SignalChat,
		Sender:      "Alice",
		Message:     "hello",
		PatientUUID: "c6a5e9f0-0000-0000-0000-000000000000",
	}
	require.NoError(t, h.Publish(context.Background(), 7, sig))

	got := a.received()
	require.Len(t, got, 1)
	assert.Equal(t, sig, got[0])
}

// fakeBroker is an in-process stand-in with broker delivery semantics:
// publishes are marshalled and pushed to every channel subscriber.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string][]chan []byte)}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- payload
	}
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *fakeBroker) Close() error { return nil }

func TestBrokerHubRoundTrip(t *testing.T) {
	h := NewBrokerHub(newFakeBroker(), zerolog.Nop())
	defer h.Close()

	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	h.Join(7, a)
	h.Join(7, b)

	sig := model.Signal{Kind: model.SignalDrawing, Data: json.RawMessage(`{"x":1}`), PatientUUID: "p1"}
	require.NoError(t, h.Publish(context.Background(), 7, sig))

	deadline := time.After(time.Second)
	for {
		if len(a.received()) == 1 && len(b.received()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("signal not delivered through broker")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, model.SignalDrawing, a.received()[0].Kind)
	assert.JSONEq(t, `{"x":1}`, string(a.received()[0].Data))
}
