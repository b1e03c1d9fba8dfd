// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector implements a Matrix-Skype puppeting bridge: inbound
// events from either network are translated and replayed on the other, with
// Skype users represented by Matrix ghost users and Skype conversations by
// alias-addressable portal rooms.
//
// # Identity model
//
// The two networks disagree about identity. Matrix has flat user IDs and
// human-readable room aliases; Skype has opaque conversation and contact
// handles full of characters the Matrix grammar reserves. The bridge
// reconciles them with a reversible codec: every bridge-owned identifier is
// @<prefix>_<base64(remote id)>:<domain> or #<prefix>_<base64(remote id)>:<domain>,
// so the remote identity is always recoverable from the Matrix identifier
// alone.
//
// # Core types
//
// [Translator] is the orchestration core: it classifies each inbound event,
// resolves or creates the counterpart identities, and dispatches the
// translated action.
//
// [IdentityStore] owns the durable identity mappings. Creation is lazy and
// coalesced per key, so concurrent first-contact events never produce
// duplicate ghosts or rooms.
//
// [Dispatcher] adapts translated actions onto the two network clients,
// [AppserviceMatrix] and [SkypeClient].
//
// Processing of one event is fully isolated from every other event: errors
// are absorbed at the single-event boundary and there is no retry at this
// layer, since both networks retry delivery upstream.
package connector
