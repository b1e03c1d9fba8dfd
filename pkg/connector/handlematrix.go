// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// HandleMatrixEvent normalizes a raw Matrix event and runs it through the
// translator. Event types the bridge does not act on are ignored without
// entering the state machine.
func (t *Translator) HandleMatrixEvent(ctx context.Context, evt *event.Event) Disposition {
	be, ok := normalizeMatrixEvent(evt)
	if !ok {
		return DispositionIgnored
	}
	return t.Process(ctx, be)
}

// normalizeMatrixEvent converts a Matrix client-server event into the bridge
// envelope. Returns ok=false for event types outside the bridge's scope.
func normalizeMatrixEvent(evt *event.Event) (*BridgeEvent, bool) {
	switch evt.Type {
	case event.EventMessage:
		content := evt.Content.AsMessage()
		if content == nil {
			return nil, false
		}
		return &BridgeEvent{
			Source: SourceMatrix,
			Kind:   KindMessage,
			Sender: string(evt.Sender),
			Room:   evt.RoomID,
			Body:   content.Body,
			Raw:    evt,
		}, true
	case event.StateMember:
		content := evt.Content.AsMember()
		if content == nil || evt.StateKey == nil {
			return nil, false
		}
		// Invites from the legacy clients this bridge serves can carry a
		// first message body alongside the membership change.
		body, _ := evt.Content.Raw["body"].(string)
		return &BridgeEvent{
			Source:     SourceMatrix,
			Kind:       KindMembership,
			Sender:     string(evt.Sender),
			Room:       evt.RoomID,
			StateKey:   *evt.StateKey,
			Membership: content.Membership,
			Body:       body,
			Raw:        evt,
		}, true
	default:
		return nil, false
	}
}

// translateMatrix classifies a Matrix-originated event and dispatches the
// corresponding Skype action.
func (t *Translator) translateMatrix(ctx context.Context, evt *BridgeEvent) (Disposition, error) {
	// Loopback guard: events sent by the bridge's own ghosts must never be
	// relayed back to Skype.
	if t.ns.IsGhost(id.UserID(evt.Sender)) {
		return DispositionIgnored, nil
	}
	evt.state = StateClassified

	switch evt.Kind {
	case KindMessage:
		return t.matrixMessage(ctx, evt)
	case KindMembership:
		return t.matrixInvite(ctx, evt)
	default:
		return DispositionIgnored, nil
	}
}

// matrixMessage bridges a message from a real Matrix user into the Skype
// conversation mapped to the room.
func (t *Translator) matrixMessage(ctx context.Context, evt *BridgeEvent) (Disposition, error) {
	if evt.Body == "" {
		return DispositionIgnored, nil
	}

	conversationID, err := t.store.ConversationForRoom(ctx, evt.Room)
	if errors.Is(err, ErrNotBridged) || errors.Is(err, ErrNotBridgeAlias) {
		return DispositionIgnored, nil
	}
	if err != nil {
		return DispositionRejected, err
	}
	evt.state = StateIdentityResolved

	senderName := t.dispatch.SenderDisplayName(ctx, id.UserID(evt.Sender))
	if err := t.dispatch.SendRemoteMessage(ctx, conversationID, evt.Body, senderName); err != nil {
		return DispositionRejected, err
	}
	return DispositionDispatched, nil
}

// matrixInvite handles an invite directed at one of the bridge's ghosts in a
// room that is not yet mapped to a conversation: the start of a new Skype
// chat. No conversation exists on the Skype side yet, so the raw Matrix room
// ID serves as the conversation context and the room is aliased so that the
// mapping is recoverable from room state alone.
func (t *Translator) matrixInvite(ctx context.Context, evt *BridgeEvent) (Disposition, error) {
	if evt.Membership != event.MembershipInvite {
		return DispositionIgnored, nil
	}
	target := id.UserID(evt.StateKey)
	if !t.ns.IsGhost(target) {
		return DispositionIgnored, nil
	}
	contactID, err := t.ns.ParseGhostMXID(target)
	if err != nil {
		return DispositionRejected, err
	}

	// An invite in an already-bridged room is plain membership churn.
	if _, err := t.store.ConversationForRoom(ctx, evt.Room); err == nil {
		return DispositionIgnored, nil
	} else if !errors.Is(err, ErrNotBridged) {
		return DispositionRejected, err
	}
	evt.state = StateIdentityResolved

	alias := t.ns.RoomAlias(string(evt.Room))
	if err := t.dispatch.SetRoomAlias(ctx, alias, evt.Room); err != nil {
		return DispositionRejected, err
	}
	if err := t.store.SetRoomConversation(ctx, evt.Room, string(evt.Room)); err != nil {
		return DispositionRejected, err
	}

	t.log.Info().
		Str("contact_id", contactID).
		Str("room_id", string(evt.Room)).
		Str("alias", string(alias)).
		Msg("Starting Skype conversation for invited contact")

	if err := t.dispatch.SendRemoteMessage(ctx, string(evt.Room), evt.Body, string(alias)); err != nil {
		return DispositionRejected, err
	}
	return DispositionDispatched, nil
}
