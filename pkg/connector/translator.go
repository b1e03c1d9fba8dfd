// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// EventSource identifies which network an inbound event originated from.
type EventSource int

const (
	SourceMatrix EventSource = iota
	SourceSkype
)

func (s EventSource) String() string {
	switch s {
	case SourceMatrix:
		return "matrix"
	case SourceSkype:
		return "skype"
	default:
		return "unknown"
	}
}

// EventKind is the coarse classification of an inbound event.
type EventKind int

const (
	KindMessage EventKind = iota
	KindMembership
)

func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindMembership:
		return "membership"
	default:
		return "unknown"
	}
}

// EventState tracks an event's progress through the translator. Each event
// moves Received → Classified → IdentityResolved → Dispatched → Acked, or
// terminates in Rejected.
type EventState int

const (
	StateReceived EventState = iota
	StateClassified
	StateIdentityResolved
	StateDispatched
	StateAcked
	StateRejected
)

func (s EventState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateClassified:
		return "classified"
	case StateIdentityResolved:
		return "identity_resolved"
	case StateDispatched:
		return "dispatched"
	case StateAcked:
		return "acked"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Disposition is the terminal outcome of processing one event.
type Disposition int

const (
	// DispositionDispatched means the translated action reached the other
	// network.
	DispositionDispatched Disposition = iota
	// DispositionIgnored means the event was deliberately not bridged
	// (unbridged room, ghost loopback). Not an error condition.
	DispositionIgnored
	// DispositionRejected means processing failed; the event is dropped and
	// upstream delivery-retry semantics apply.
	DispositionRejected
)

func (d Disposition) String() string {
	switch d {
	case DispositionDispatched:
		return "dispatched"
	case DispositionIgnored:
		return "ignored"
	case DispositionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// BridgeEvent is the normalized envelope for an inbound event from either
// network. It is created by the inbound listener, consumed exactly once by
// the translator, and never mutated afterwards except to track processing
// state and deliver the acknowledgement.
type BridgeEvent struct {
	Source EventSource
	Kind   EventKind

	// Sender is the originating identity: an MXID for Matrix events, a
	// Skype user ID for remote events.
	Sender string
	// Room is set for Matrix events.
	Room id.RoomID
	// Conversation is set for Skype events.
	Conversation string
	// StateKey and Membership are set for Matrix membership events.
	StateKey   string
	Membership event.Membership
	// Body is the plain-text message body, if any.
	Body string
	// Raw is the untranslated event for logging and diagnostics.
	Raw any

	state   EventState
	ack     func(error)
	ackOnce sync.Once
}

// State returns the event's current processing state.
func (e *BridgeEvent) State() EventState {
	return e.state
}

// OnResolve registers the acknowledgement handle for this event. The
// translator invokes it exactly once when processing completes; err is nil
// for dispatched and ignored events.
func (e *BridgeEvent) OnResolve(fn func(error)) {
	e.ack = fn
}

func (e *BridgeEvent) resolve(err error) {
	e.ackOnce.Do(func() {
		if e.ack != nil {
			e.ack(err)
		}
	})
}

// Translator is the orchestration core of the bridge. It receives normalized
// inbound events, resolves or creates the counterpart identities through the
// IdentityStore, and emits the translated action through the Dispatcher.
//
// Events are processed independently: a failure in one event never blocks or
// corrupts the processing of another, and no lock is held across a network
// call. Ordering for events touching the same identity is provided by the
// store's per-key creation coalescing, not by a global queue.
type Translator struct {
	store    *IdentityStore
	profiles *DisplayResolver
	dispatch *Dispatcher
	ns       Namespace
	log      zerolog.Logger
}

// NewTranslator wires the translator to its collaborators.
func NewTranslator(store *IdentityStore, profiles *DisplayResolver, dispatch *Dispatcher, ns Namespace, log zerolog.Logger) *Translator {
	return &Translator{
		store:    store,
		profiles: profiles,
		dispatch: dispatch,
		ns:       ns,
		log:      log.With().Str("component", "translator").Logger(),
	}
}

// Process runs a single event through the translation state machine and
// resolves its acknowledgement handle. It is safe to call concurrently from
// multiple inbound deliveries.
func (t *Translator) Process(ctx context.Context, evt *BridgeEvent) Disposition {
	log := t.log.With().
		Stringer("source", evt.Source).
		Stringer("kind", evt.Kind).
		Str("sender", evt.Sender).
		Logger()

	var disp Disposition
	var err error
	switch evt.Source {
	case SourceMatrix:
		disp, err = t.translateMatrix(ctx, evt)
	case SourceSkype:
		disp, err = t.translateSkype(ctx, evt)
	default:
		disp = DispositionRejected
	}

	switch disp {
	case DispositionDispatched:
		evt.state = StateDispatched
		evt.resolve(nil)
		evt.state = StateAcked
		log.Debug().Msg("Event dispatched")
	case DispositionIgnored:
		evt.state = StateRejected
		evt.resolve(nil)
		log.Debug().Msg("Event ignored")
	case DispositionRejected:
		evt.state = StateRejected
		evt.resolve(err)
		log.Error().Err(err).Msg("Event rejected")
	}
	return disp
}
