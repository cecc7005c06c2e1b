// Package events carries engine state changes to read-only subscribers:
// websocket clients, Redis pub/sub and the Kafka analytics topic.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Type names an engine event
type Type string

const (
	AuctionCreated    Type = "auction.created"
	AuctionLive       Type = "auction.live"
	AuctionCancelled  Type = "auction.cancelled"
	ParticipantJoined Type = "participant.joined"
	RoundOpened       Type = "round.opened"
	RoundClosed       Type = "round.closed"
	BidAccepted       Type = "bid.accepted"
	WinnersAnnounced  Type = "winners.announced"
	ClaimOffered      Type = "claim.offered"
	ClaimExpired      Type = "claim.expired"
	ClaimPaid         Type = "claim.paid"
	CascadeClosed     Type = "cascade.closed"
	TimeSync          Type = "time"
)

// Event is one state change. Payload must be JSON-encodable.
type Event struct {
	Type      Type      `json:"type"`
	AuctionID string    `json:"auctionId,omitempty"`
	Round     int       `json:"round,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Delivery is best effort; engine state never
// depends on it.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to several publishers
type Multi []Publisher

// Publish sends to every publisher and joins their errors
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of type t
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var (
	_ Publisher = Multi(nil)
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
