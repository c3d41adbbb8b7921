package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/model"
)

// Subscriber receives fan-out signals for one doctor's group. Notify must not
// block; sessions buffer internally and drop on overflow.
type Subscriber interface {
	Notify(sig model.Signal)
}

// Hub is the per-doctor publish/subscribe group. Publish delivers the signal
// to every current member of the doctor's group, including the publisher.
// Delivery is best effort: no retry, no ordering across members.
type Hub interface {
	Join(doctorID int64, sub Subscriber)
	Leave(doctorID int64, sub Subscriber)
	Publish(ctx context.Context, doctorID int64, sig model.Signal) error
	Close() error
}

// MemoryHub is the single-process registry. Multi-process deployments use
// BrokerHub instead.
type MemoryHub struct {
	mu     sync.RWMutex
	groups map[int64]map[Subscriber]struct{}
	logger zerolog.Logger
}

func NewMemoryHub(logger zerolog.Logger) *MemoryHub {
	return &MemoryHub{
		groups: make(map[int64]map[Subscriber]struct{}),
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

func (h *MemoryHub) Join(doctorID int64, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[doctorID]
	if !ok {
		group = make(map[Subscriber]struct{})
		h.groups[doctorID] = group
	}
	group[sub] = struct{}{}
}

func (h *MemoryHub) Leave(doctorID int64, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[doctorID]
	if !ok {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(h.groups, doctorID)
	}
}

func (h *MemoryHub) Publish(_ context.Context, doctorID int64, sig model.Signal) error {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.groups[doctorID]))
	for sub := range h.groups[doctorID] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	for _, sub := range members {
		sub.Notify(sig)
	}
	h.logger.Debug().
		Int64("doctor_id", doctorID).
		Str("kind", sig.Kind).
		Int("members", len(members)).
		Msg("signal published")
	return nil
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.groups = make(map[int64]map[Subscriber]struct{})
	return nil
}
