// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/id"
)

// BridgeQueryHandler answers homeserver queries for identifiers in the bridge
// namespace. A query for a bridge alias or ghost MXID materializes the portal
// room or ghost on demand, so joining #skype_<fragment>:<domain> works before
// any message has flowed through the bridge.
type BridgeQueryHandler struct {
	store *IdentityStore
	ns    Namespace
	log   zerolog.Logger
}

var _ appservice.QueryHandler = (*BridgeQueryHandler)(nil)

// NewBridgeQueryHandler creates a query handler over the identity store.
func NewBridgeQueryHandler(store *IdentityStore, ns Namespace, log zerolog.Logger) *BridgeQueryHandler {
	return &BridgeQueryHandler{
		store: store,
		ns:    ns,
		log:   log.With().Str("component", "query_handler").Logger(),
	}
}

// QueryAlias reports whether the queried room alias belongs to the bridge,
// creating the portal room for its conversation if needed.
func (q *BridgeQueryHandler) QueryAlias(alias string) bool {
	conversationID, err := q.store.ConversationForAlias(id.RoomAlias(alias))
	if err != nil {
		return false
	}
	if _, err := q.store.GetOrCreateRoom(context.Background(), conversationID); err != nil {
		q.log.Err(err).
			Str("alias", alias).
			Str("conversation_id", conversationID).
			Msg("Failed to create portal room for queried alias")
		return false
	}
	return true
}

// QueryUser reports whether the queried user ID is one of the bridge's
// ghosts, registering it if needed.
func (q *BridgeQueryHandler) QueryUser(userID id.UserID) bool {
	remoteUserID, err := q.ns.ParseGhostMXID(userID)
	if err != nil {
		return false
	}
	if _, err := q.store.GetOrCreateGhost(context.Background(), remoteUserID); err != nil {
		q.log.Err(err).
			Str("user_id", string(userID)).
			Str("remote_user_id", remoteUserID).
			Msg("Failed to register queried ghost")
		return false
	}
	return true
}
