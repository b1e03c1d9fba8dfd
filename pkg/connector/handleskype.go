// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"time"
)

// SkypeMessage is a normalized inbound message from the Skype event stream.
type SkypeMessage struct {
	ID                string
	ConversationID    string
	SenderID          string
	SenderDisplayName string
	Body              string
	Timestamp         time.Time
}

// HandleSkypeMessage runs an inbound Skype message through the translator.
func (t *Translator) HandleSkypeMessage(ctx context.Context, msg *SkypeMessage) Disposition {
	// Event frames carry the sender's current name; use it instead of a
	// separate profile lookup.
	t.profiles.Observe(msg.SenderID, msg.SenderDisplayName)
	return t.Process(ctx, &BridgeEvent{
		Source:       SourceSkype,
		Kind:         KindMessage,
		Sender:       msg.SenderID,
		Conversation: msg.ConversationID,
		Body:         msg.Body,
		Raw:          msg,
	})
}

// translateSkype bridges a Skype-originated message into Matrix. Unknown
// conversations and unknown senders are materialized on the fly: the store
// creates the portal room (with its deterministic alias) and the ghost user,
// coalescing concurrent first-contact messages onto a single creation each.
func (t *Translator) translateSkype(ctx context.Context, evt *BridgeEvent) (Disposition, error) {
	if evt.Conversation == "" || evt.Sender == "" {
		return DispositionIgnored, nil
	}
	evt.state = StateClassified

	roomID, err := t.store.GetOrCreateRoom(ctx, evt.Conversation)
	if err != nil {
		return DispositionRejected, err
	}
	ghost, err := t.store.GetOrCreateGhost(ctx, evt.Sender)
	if err != nil {
		return DispositionRejected, err
	}
	evt.state = StateIdentityResolved

	// Profile sync is cosmetic: failures are logged and never block the
	// message itself.
	name := t.profiles.DisplayName(ctx, evt.Sender)
	if t.profiles.ShouldPush(evt.Sender, name) {
		if err := t.dispatch.SetGhostProfile(ctx, ghost, name); err != nil {
			t.log.Warn().Err(err).
				Str("ghost", string(ghost)).
				Msg("Failed to update ghost display name")
		} else {
			t.profiles.MarkPushed(evt.Sender, name)
		}
	}

	if err := t.dispatch.EnsureJoined(ctx, ghost, roomID); err != nil {
		return DispositionRejected, err
	}
	if err := t.dispatch.SendMatrixMessage(ctx, roomID, ghost, evt.Body); err != nil {
		return DispositionRejected, err
	}
	return DispositionDispatched, nil
}
