package queue

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	pinFloor = 100000
	pinSpan  = 900000
)

// PINStore is the slice of the entry store the generator needs: one probe
// across the shared host/guest namespace.
type PINStore interface {
	PINExists(ctx context.Context, pin string) (bool, error)
}

// PINGenerator mints 6-digit admission secrets. A draw colliding with any
// stored host or guest PIN is thrown away and retried; with 900k values the
// loop terminates quickly at any realistic table size.
type PINGenerator struct {
	store PINStore
}

func NewPINGenerator(store PINStore) *PINGenerator {
	return &PINGenerator{store: store}
}

func (g *PINGenerator) Generate(ctx context.Context) (string, error) {
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(pinSpan))
		if err != nil {
			return "", fmt.Errorf("failed to draw pin: %w", err)
		}
		pin := fmt.Sprintf("%06d", n.Int64()+pinFloor)

		exists, err := g.store.PINExists(ctx, pin)
		if err != nil {
			return "", err
		}
		if !exists {
			return pin, nil
		}
	}
}

// GeneratePair returns the host and guest PINs for one entry. The host PIN is
// not persisted yet when the guest draw happens, so the pair is checked for
// equality explicitly.
func (g *PINGenerator) GeneratePair(ctx context.Context) (host, guest string, err error) {
	host, err = g.Generate(ctx)
	if err != nil {
		return "", "", err
	}
	for {
		guest, err = g.Generate(ctx)
		if err != nil {
			return "", "", err
		}
		if guest != host {
			return host, guest, nil
		}
	}
}
