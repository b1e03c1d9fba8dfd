// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"maunium.net/go/mautrix/id"
)

// ErrNotBridged is returned when a Matrix room has no Skype conversation
// mapped to it. Events on such rooms are ignored, not rejected.
var ErrNotBridged = errors.New("room is not bridged to a conversation")

// identityCreator is the slice of the outbound dispatcher the store needs to
// materialize new identities. Tests inject a fake instead of a full
// Dispatcher.
type identityCreator interface {
	RegisterGhost(ctx context.Context, ghost id.UserID) error
	CreateRoom(ctx context.Context, aliasLocalpart string) (id.RoomID, error)
	RoomAliases(ctx context.Context, roomID id.RoomID) ([]id.RoomAlias, error)
}

// IdentityStore owns the durable mapping between Skype identities and their
// Matrix counterparts: ghost users for Skype users, portal rooms for Skype
// conversations. Mappings are created lazily on first sight and never removed.
//
// Creation is serialized per key: concurrent calls for the same Skype
// identifier coalesce onto a single in-flight creation, so the store never
// hands out two different Matrix identities for the same remote one.
type IdentityStore struct {
	kv       KeyValueStore
	ns       Namespace
	creator  identityCreator
	inflight singleflight.Group
	log      zerolog.Logger
}

// NewIdentityStore creates an IdentityStore over the given backing store.
func NewIdentityStore(kv KeyValueStore, ns Namespace, creator identityCreator, log zerolog.Logger) *IdentityStore {
	return &IdentityStore{
		kv:      kv,
		ns:      ns,
		creator: creator,
		log:     log.With().Str("component", "identity_store").Logger(),
	}
}

func ghostKey(remoteUserID string) string   { return "ghost-mxid/" + remoteUserID }
func remoteKey(ghost id.UserID) string      { return "ghost-remote/" + string(ghost) }
func roomKey(conversationID string) string  { return "conv-room/" + conversationID }
func conversationKey(room id.RoomID) string { return "room-conv/" + string(room) }

// GetOrCreateGhost returns the Matrix ghost user for a Skype user, creating
// and registering it on first sight. The registration round trip completes
// before the mapping is persisted, so a ghost MXID returned from here is
// always usable.
func (s *IdentityStore) GetOrCreateGhost(ctx context.Context, remoteUserID string) (id.UserID, error) {
	v, err, _ := s.inflight.Do(ghostKey(remoteUserID), func() (any, error) {
		existing, ok, err := s.kv.Get(ctx, ghostKey(remoteUserID))
		if err != nil {
			return nil, fmt.Errorf("ghost lookup failed: %w", err)
		}
		if ok {
			return id.UserID(existing), nil
		}

		ghost := s.ns.GhostMXID(remoteUserID)
		if err := s.creator.RegisterGhost(ctx, ghost); err != nil {
			return nil, fmt.Errorf("ghost registration failed: %w", err)
		}
		if err := s.kv.Put(ctx, ghostKey(remoteUserID), string(ghost)); err != nil {
			return nil, fmt.Errorf("failed to persist ghost mapping: %w", err)
		}
		if err := s.kv.Put(ctx, remoteKey(ghost), remoteUserID); err != nil {
			return nil, fmt.Errorf("failed to persist reverse ghost mapping: %w", err)
		}
		s.log.Info().
			Str("remote_user_id", remoteUserID).
			Str("ghost_mxid", string(ghost)).
			Msg("Created ghost user")
		return ghost, nil
	})
	if err != nil {
		return "", err
	}
	return v.(id.UserID), nil
}

// GetOrCreateRoom returns the Matrix room for a Skype conversation, creating
// it (with its deterministic alias) on first sight.
func (s *IdentityStore) GetOrCreateRoom(ctx context.Context, conversationID string) (id.RoomID, error) {
	v, err, _ := s.inflight.Do(roomKey(conversationID), func() (any, error) {
		existing, ok, err := s.kv.Get(ctx, roomKey(conversationID))
		if err != nil {
			return nil, fmt.Errorf("room lookup failed: %w", err)
		}
		if ok {
			return id.RoomID(existing), nil
		}

		roomID, err := s.creator.CreateRoom(ctx, s.ns.AliasLocalpart(conversationID))
		if err != nil {
			return nil, fmt.Errorf("room creation failed: %w", err)
		}
		if err := s.persistRoomMapping(ctx, roomID, conversationID); err != nil {
			return nil, err
		}
		s.log.Info().
			Str("conversation_id", conversationID).
			Str("room_id", string(roomID)).
			Msg("Created portal room")
		return roomID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(id.RoomID), nil
}

// ConversationForRoom returns the Skype conversation mapped to a Matrix room.
// When no persisted mapping exists, the room's published aliases are checked
// for one in the bridge namespace, and a match is persisted for next time.
// Rooms with neither yield ErrNotBridged.
func (s *IdentityStore) ConversationForRoom(ctx context.Context, roomID id.RoomID) (string, error) {
	existing, ok, err := s.kv.Get(ctx, conversationKey(roomID))
	if err != nil {
		return "", fmt.Errorf("conversation lookup failed: %w", err)
	}
	if ok {
		return existing, nil
	}

	aliases, err := s.creator.RoomAliases(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch aliases for %s: %w", roomID, err)
	}
	for _, alias := range aliases {
		conversationID, err := s.ns.ParseRoomAlias(alias)
		if errors.Is(err, ErrNotBridgeAlias) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := s.persistRoomMapping(ctx, roomID, conversationID); err != nil {
			return "", err
		}
		return conversationID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotBridged, roomID)
}

// ConversationForAlias decodes a bridge room alias into its conversation ID.
func (s *IdentityStore) ConversationForAlias(alias id.RoomAlias) (string, error) {
	return s.ns.ParseRoomAlias(alias)
}

// RemoteUserForGhost returns the Skype user a ghost MXID represents, or
// ok=false when the ghost is unknown.
func (s *IdentityStore) RemoteUserForGhost(ctx context.Context, ghost id.UserID) (string, bool, error) {
	remote, ok, err := s.kv.Get(ctx, remoteKey(ghost))
	if err != nil {
		return "", false, fmt.Errorf("remote user lookup failed: %w", err)
	}
	return remote, ok, nil
}

// SetRoomConversation records an explicit room-to-conversation binding. Used
// by the invite bootstrap path, where the conversation context is assigned
// before any Skype-side conversation exists.
func (s *IdentityStore) SetRoomConversation(ctx context.Context, roomID id.RoomID, conversationID string) error {
	return s.persistRoomMapping(ctx, roomID, conversationID)
}

func (s *IdentityStore) persistRoomMapping(ctx context.Context, roomID id.RoomID, conversationID string) error {
	if err := s.kv.Put(ctx, roomKey(conversationID), string(roomID)); err != nil {
		return fmt.Errorf("failed to persist room mapping: %w", err)
	}
	if err := s.kv.Put(ctx, conversationKey(roomID), conversationID); err != nil {
		return fmt.Errorf("failed to persist reverse room mapping: %w", err)
	}
	return nil
}
