// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/id"
)

var (
	// ErrMalformedFragment is returned when an alias or user-id fragment
	// cannot be decoded back into a Skype identifier.
	ErrMalformedFragment = errors.New("malformed identifier fragment")
	// ErrNotBridgeAlias is returned when a room alias does not belong to
	// this bridge's namespace.
	ErrNotBridgeAlias = errors.New("alias is not in the bridge namespace")
	// ErrNotGhostMXID is returned when a Matrix user ID is not one of this
	// bridge's ghost users.
	ErrNotGhostMXID = errors.New("user ID is not a bridge ghost")
)

// EncodeRemoteID encodes a Skype identifier into a fragment that is safe to
// use inside room aliases and user-id localparts. Skype identifiers contain
// characters that are reserved in the Matrix identifier grammar (most notably
// ":", as in "8:live:someone"), so the raw identifier cannot be embedded
// directly. Padded standard base64 keeps the mapping bit-exact with aliases
// published by earlier versions of the bridge.
func EncodeRemoteID(remoteID string) string {
	return base64.StdEncoding.EncodeToString([]byte(remoteID))
}

// DecodeRemoteID reverses EncodeRemoteID. Decoding is strict: a fragment that
// is not valid base64 yields ErrMalformedFragment, never a best-effort
// identifier.
func DecodeRemoteID(fragment string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(fragment)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedFragment, fragment)
	}
	return string(raw), nil
}

// Namespace describes the identifier namespace the bridge owns on the
// homeserver: localparts of the form <prefix>_<fragment> under a single
// Matrix domain.
type Namespace struct {
	Prefix string
	Domain string
}

// AliasLocalpart returns the alias localpart for a Skype conversation,
// suitable for the room_alias_name field of a room creation request.
func (ns Namespace) AliasLocalpart(conversationID string) string {
	return ns.Prefix + "_" + EncodeRemoteID(conversationID)
}

// RoomAlias returns the full room alias for a Skype conversation.
func (ns Namespace) RoomAlias(conversationID string) id.RoomAlias {
	return id.RoomAlias(fmt.Sprintf("#%s:%s", ns.AliasLocalpart(conversationID), ns.Domain))
}

// GhostMXID returns the Matrix user ID of the ghost representing a Skype user.
func (ns Namespace) GhostMXID(remoteUserID string) id.UserID {
	return id.UserID(fmt.Sprintf("@%s_%s:%s", ns.Prefix, EncodeRemoteID(remoteUserID), ns.Domain))
}

// ParseRoomAlias extracts the Skype conversation ID from a bridge room alias.
// Aliases outside the namespace yield ErrNotBridgeAlias; aliases inside the
// namespace with an undecodable fragment yield ErrMalformedFragment.
func (ns Namespace) ParseRoomAlias(alias id.RoomAlias) (string, error) {
	fragment, err := ns.parseLocalpart(string(alias), "#")
	if err != nil {
		return "", err
	}
	return DecodeRemoteID(fragment)
}

// ParseGhostMXID extracts the Skype user ID from a ghost Matrix user ID.
func (ns Namespace) ParseGhostMXID(userID id.UserID) (string, error) {
	fragment, err := ns.parseLocalpart(string(userID), "@")
	if err != nil {
		if errors.Is(err, ErrNotBridgeAlias) {
			return "", fmt.Errorf("%w: %s", ErrNotGhostMXID, userID)
		}
		return "", err
	}
	return DecodeRemoteID(fragment)
}

// IsGhost reports whether a Matrix user ID belongs to the bridge's ghost
// namespace. It does not verify that the fragment decodes.
func (ns Namespace) IsGhost(userID id.UserID) bool {
	fragment, err := ns.parseLocalpart(string(userID), "@")
	return err == nil && fragment != ""
}

// parseLocalpart strips the sigil and domain from a Matrix identifier and
// returns the codec fragment, checking that the identifier carries the
// bridge's prefix and domain.
func (ns Namespace) parseLocalpart(raw, sigil string) (string, error) {
	if !strings.HasPrefix(raw, sigil) {
		return "", fmt.Errorf("%w: %q", ErrNotBridgeAlias, raw)
	}
	localpart, domain, found := strings.Cut(raw[len(sigil):], ":")
	if !found || domain != ns.Domain {
		return "", fmt.Errorf("%w: %q", ErrNotBridgeAlias, raw)
	}
	fragment, ok := strings.CutPrefix(localpart, ns.Prefix+"_")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotBridgeAlias, raw)
	}
	return fragment, nil
}
