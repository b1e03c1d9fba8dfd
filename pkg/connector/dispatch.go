// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MatrixAPI is the slice of the homeserver surface the bridge drives: ghost
// registration, portal room management, and message injection. The production
// implementation sits on appservice intents; tests use a recording fake.
type MatrixAPI interface {
	RegisterGhost(ctx context.Context, ghost id.UserID) error
	CreateRoom(ctx context.Context, aliasLocalpart string) (id.RoomID, error)
	SetRoomAlias(ctx context.Context, alias id.RoomAlias, roomID id.RoomID) error
	RoomAliases(ctx context.Context, roomID id.RoomID) ([]id.RoomAlias, error)
	EnsureJoined(ctx context.Context, ghost id.UserID, roomID id.RoomID) error
	SendMessage(ctx context.Context, roomID id.RoomID, sender id.UserID, content *event.MessageEventContent) error
	SetDisplayName(ctx context.Context, ghost id.UserID, name string) error
	DisplayName(ctx context.Context, user id.UserID) (string, error)
}

// RemoteNetwork is the slice of the Skype client the bridge sends through.
// senderContext carries the identity shown alongside the message: the Matrix
// sender's display name for bridged messages, or the portal room alias for
// conversation-bootstrap sends.
type RemoteNetwork interface {
	SendMessage(ctx context.Context, conversationID, body, senderContext string) error
}

// Dispatcher turns translated actions into calls against the two network
// clients. Every call is synchronous from the translator's point of view: the
// returned error is the completion signal the translator awaits before
// marking an event dispatched.
type Dispatcher struct {
	matrix MatrixAPI
	remote RemoteNetwork
	log    zerolog.Logger
}

var _ identityCreator = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher over the two network clients.
func NewDispatcher(matrix MatrixAPI, remote RemoteNetwork, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		matrix: matrix,
		remote: remote,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// SendRemoteMessage delivers a message into a Skype conversation.
func (d *Dispatcher) SendRemoteMessage(ctx context.Context, conversationID, body, senderContext string) error {
	d.log.Debug().
		Str("conversation_id", conversationID).
		Str("sender_context", senderContext).
		Msg("Sending message to Skype")
	if err := d.remote.SendMessage(ctx, conversationID, body, senderContext); err != nil {
		return fmt.Errorf("skype send failed: %w", err)
	}
	return nil
}

// SendMatrixMessage injects a plain-text message into a portal room as the
// given ghost user.
func (d *Dispatcher) SendMatrixMessage(ctx context.Context, roomID id.RoomID, sender id.UserID, body string) error {
	d.log.Debug().
		Str("room_id", string(roomID)).
		Str("sender", string(sender)).
		Msg("Sending message to Matrix")
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    body,
	}
	if err := d.matrix.SendMessage(ctx, roomID, sender, content); err != nil {
		return fmt.Errorf("matrix send failed: %w", err)
	}
	return nil
}

// RegisterGhost registers a ghost user on the homeserver.
func (d *Dispatcher) RegisterGhost(ctx context.Context, ghost id.UserID) error {
	d.log.Debug().Str("ghost", string(ghost)).Msg("Registering ghost user")
	if err := d.matrix.RegisterGhost(ctx, ghost); err != nil {
		return fmt.Errorf("ghost registration failed: %w", err)
	}
	return nil
}

// CreateRoom creates a portal room with the given alias localpart and returns
// its room ID.
func (d *Dispatcher) CreateRoom(ctx context.Context, aliasLocalpart string) (id.RoomID, error) {
	d.log.Debug().Str("alias_localpart", aliasLocalpart).Msg("Creating portal room")
	roomID, err := d.matrix.CreateRoom(ctx, aliasLocalpart)
	if err != nil {
		return "", fmt.Errorf("room creation failed: %w", err)
	}
	return roomID, nil
}

// SetRoomAlias publishes an alias for an existing room.
func (d *Dispatcher) SetRoomAlias(ctx context.Context, alias id.RoomAlias, roomID id.RoomID) error {
	d.log.Debug().
		Str("alias", string(alias)).
		Str("room_id", string(roomID)).
		Msg("Setting room alias")
	if err := d.matrix.SetRoomAlias(ctx, alias, roomID); err != nil {
		return fmt.Errorf("alias assignment failed: %w", err)
	}
	return nil
}

// RoomAliases returns the published aliases of a room.
func (d *Dispatcher) RoomAliases(ctx context.Context, roomID id.RoomID) ([]id.RoomAlias, error) {
	aliases, err := d.matrix.RoomAliases(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("alias lookup failed: %w", err)
	}
	return aliases, nil
}

// EnsureJoined makes sure a ghost is joined to a portal room.
func (d *Dispatcher) EnsureJoined(ctx context.Context, ghost id.UserID, roomID id.RoomID) error {
	if err := d.matrix.EnsureJoined(ctx, ghost, roomID); err != nil {
		return fmt.Errorf("ghost join failed: %w", err)
	}
	return nil
}

// SetGhostProfile updates a ghost's Matrix display name.
func (d *Dispatcher) SetGhostProfile(ctx context.Context, ghost id.UserID, displayName string) error {
	d.log.Debug().
		Str("ghost", string(ghost)).
		Str("display_name", displayName).
		Msg("Updating ghost profile")
	if err := d.matrix.SetDisplayName(ctx, ghost, displayName); err != nil {
		return fmt.Errorf("profile update failed: %w", err)
	}
	return nil
}

// SenderDisplayName fetches the Matrix display name of a real (non-ghost)
// user, degrading to the raw MXID when the profile is unavailable.
func (d *Dispatcher) SenderDisplayName(ctx context.Context, user id.UserID) string {
	name, err := d.matrix.DisplayName(ctx, user)
	if err != nil || name == "" {
		if err != nil {
			d.log.Debug().Err(err).Str("user", string(user)).Msg("Matrix profile lookup failed")
		}
		return string(user)
	}
	return name
}
