// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// memoryKV is an in-memory KeyValueStore for tests.
type memoryKV struct {
	mu   sync.RWMutex
	data map[string]string
	// failGet/failPut force errors to exercise store error paths.
	failGet error
	failPut error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failGet != nil {
		return "", false, m.failGet
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) Close() error { return nil }

func (m *memoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// sentMatrixMessage records one SendMessage call on the fake Matrix API.
type sentMatrixMessage struct {
	Room   id.RoomID
	Sender id.UserID
	Body   string
}

// fakeMatrix is a recording MatrixAPI implementation.
type fakeMatrix struct {
	mu sync.Mutex

	registered   []id.UserID
	createdRooms []string // alias localparts
	setAliases   map[id.RoomAlias]id.RoomID
	joined       []string // "ghost room" pairs
	sent         []sentMatrixMessage
	profileNames map[id.UserID]string // SetDisplayName results
	nameSets     []string             // every SetDisplayName call, "ghost name"

	// roomAliases configures RoomAliases responses per room.
	roomAliases map[id.RoomID][]id.RoomAlias
	// displayNames configures DisplayName responses.
	displayNames map[id.UserID]string

	nextRoom int

	// failures per method name.
	fail map[string]error
}

func newFakeMatrix() *fakeMatrix {
	return &fakeMatrix{
		setAliases:   make(map[id.RoomAlias]id.RoomID),
		profileNames: make(map[id.UserID]string),
		roomAliases:  make(map[id.RoomID][]id.RoomAlias),
		displayNames: make(map[id.UserID]string),
		fail:         make(map[string]error),
	}
}

func (f *fakeMatrix) RegisterGhost(_ context.Context, ghost id.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["RegisterGhost"]; err != nil {
		return err
	}
	f.registered = append(f.registered, ghost)
	return nil
}

func (f *fakeMatrix) CreateRoom(_ context.Context, aliasLocalpart string) (id.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["CreateRoom"]; err != nil {
		return "", err
	}
	f.nextRoom++
	f.createdRooms = append(f.createdRooms, aliasLocalpart)
	return id.RoomID(fmt.Sprintf("!room%d:bar", f.nextRoom)), nil
}

func (f *fakeMatrix) SetRoomAlias(_ context.Context, alias id.RoomAlias, roomID id.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["SetRoomAlias"]; err != nil {
		return err
	}
	f.setAliases[alias] = roomID
	return nil
}

func (f *fakeMatrix) RoomAliases(_ context.Context, roomID id.RoomID) ([]id.RoomAlias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["RoomAliases"]; err != nil {
		return nil, err
	}
	return f.roomAliases[roomID], nil
}

func (f *fakeMatrix) EnsureJoined(_ context.Context, ghost id.UserID, roomID id.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["EnsureJoined"]; err != nil {
		return err
	}
	f.joined = append(f.joined, string(ghost)+" "+string(roomID))
	return nil
}

func (f *fakeMatrix) SendMessage(_ context.Context, roomID id.RoomID, sender id.UserID, content *event.MessageEventContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["SendMessage"]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMatrixMessage{Room: roomID, Sender: sender, Body: content.Body})
	return nil
}

func (f *fakeMatrix) SetDisplayName(_ context.Context, ghost id.UserID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["SetDisplayName"]; err != nil {
		return err
	}
	f.profileNames[ghost] = name
	f.nameSets = append(f.nameSets, string(ghost)+" "+name)
	return nil
}

func (f *fakeMatrix) NameSets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.nameSets))
	copy(cp, f.nameSets)
	return cp
}

func (f *fakeMatrix) DisplayName(_ context.Context, user id.UserID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["DisplayName"]; err != nil {
		return "", err
	}
	return f.displayNames[user], nil
}

func (f *fakeMatrix) Registered() []id.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]id.UserID, len(f.registered))
	copy(cp, f.registered)
	return cp
}

func (f *fakeMatrix) CreatedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.createdRooms))
	copy(cp, f.createdRooms)
	return cp
}

func (f *fakeMatrix) Sent() []sentMatrixMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentMatrixMessage, len(f.sent))
	copy(cp, f.sent)
	return cp
}

// remoteSend records one SendMessage call on the fake Skype side.
type remoteSend struct {
	ConversationID string
	Body           string
	SenderContext  string
}

type fakeRemote struct {
	mu    sync.Mutex
	sends []remoteSend
	err   error
}

func (f *fakeRemote) SendMessage(_ context.Context, conversationID, body, senderContext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, remoteSend{ConversationID: conversationID, Body: body, SenderContext: senderContext})
	return nil
}

func (f *fakeRemote) Sends() []remoteSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]remoteSend, len(f.sends))
	copy(cp, f.sends)
	return cp
}

// fakeProfileSource is a configurable ProfileSource counting lookups.
type fakeProfileSource struct {
	mu    sync.Mutex
	names map[string]string
	err   error
	calls int
}

func (f *fakeProfileSource) DisplayName(_ context.Context, remoteUserID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.names[remoteUserID], nil
}

func (f *fakeProfileSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testEnv bundles a fully wired translator over fakes.
type testEnv struct {
	ns       Namespace
	kv       *memoryKV
	matrix   *fakeMatrix
	remote   *fakeRemote
	source   *fakeProfileSource
	store    *IdentityStore
	profiles *DisplayResolver
	tr       *Translator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	ns := Namespace{Prefix: "skype", Domain: "bar"}
	kv := newMemoryKV()
	matrix := newFakeMatrix()
	remote := &fakeRemote{}
	source := &fakeProfileSource{names: make(map[string]string)}

	dispatcher := NewDispatcher(matrix, remote, log)
	store := NewIdentityStore(kv, ns, dispatcher, log)
	profiles := NewDisplayResolver(source, nil, log)
	tr := NewTranslator(store, profiles, dispatcher, ns, log)

	return &testEnv{
		ns:       ns,
		kv:       kv,
		matrix:   matrix,
		remote:   remote,
		source:   source,
		store:    store,
		profiles: profiles,
		tr:       tr,
	}
}
