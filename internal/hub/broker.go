package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/pkg/messaging"
)

const channelPrefix = "waitingroom."

// BrokerHub fans signals out through an external broker so every process
// hosting sessions for the same doctor sees every publish. Local members are
// tracked per group; one relay goroutine per group forwards broker messages
// to them.
type BrokerHub struct {
	broker messaging.Broker
	logger zerolog.Logger

	mu     sync.Mutex
	groups map[int64]*brokerGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type brokerGroup struct {
	members map[Subscriber]struct{}
	cancel  context.CancelFunc
}

func NewBrokerHub(broker messaging.Broker, logger zerolog.Logger) *BrokerHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &BrokerHub{
		broker: broker,
		logger: logger.With().Str("component", "hub").Logger(),
		groups: make(map[int64]*brokerGroup),
		ctx:    ctx,
		cancel: cancel,
	}
}

func channelFor(doctorID int64) string {
	return channelPrefix + strconv.FormatInt(doctorID, 10)
}

func (h *BrokerHub) Join(doctorID int64, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[doctorID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		group = &brokerGroup{
			members: make(map[Subscriber]struct{}),
			cancel:  cancel,
		}
		h.groups[doctorID] = group

		msgs, err := h.broker.Subscribe(ctx, channelFor(doctorID))
		if err != nil {
			h.logger.Error().Err(err).Int64("doctor_id", doctorID).Msg("broker subscribe failed")
		} else {
			go h.relay(doctorID, msgs)
		}
	}
	group.members[sub] = struct{}{}
}

func (h *BrokerHub) relay(doctorID int64, msgs <-chan []byte) {
	for payload := range msgs {
		var sig model.Signal
		if err := json.Unmarshal(payload, &sig); err != nil {
			h.logger.Warn().Err(err).Int64("doctor_id", doctorID).Msg("dropping malformed signal")
			continue
		}

		h.mu.Lock()
		group, ok := h.groups[doctorID]
		members := make([]Subscriber, 0)
		if ok {
			for sub := range group.members {
				members = append(members, sub)
			}
		}
		h.mu.Unlock()

		for _, sub := range members {
			sub.Notify(sig)
		}
	}
}

func (h *BrokerHub) Leave(doctorID int64, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[doctorID]
	if !ok {
		return
	}
	delete(group.members, sub)
	if len(group.members) == 0 {
		group.cancel()
		delete(h.groups, doctorID)
	}
}

func (h *BrokerHub) Publish(ctx context.Context, doctorID int64, sig model.Signal) error {
	if err := h.broker.Publish(ctx, channelFor(doctorID), sig); err != nil {
		return fmt.Errorf("failed to publish signal: %w", err)
	}
	return nil
}

func (h *BrokerHub) Close() error {
	h.cancel()
	h.mu.Lock()
	h.groups = make(map[int64]*brokerGroup)
	h.mu.Unlock()
	return h.broker.Close()
}
