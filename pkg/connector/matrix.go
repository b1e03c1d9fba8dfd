// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// AppserviceMatrix implements MatrixAPI on top of mautrix appservice intents.
type AppserviceMatrix struct {
	as  *appservice.AppService
	log zerolog.Logger
}

var _ MatrixAPI = (*AppserviceMatrix)(nil)

// NewAppserviceMatrix wraps a configured appservice.
func NewAppserviceMatrix(as *appservice.AppService, log zerolog.Logger) *AppserviceMatrix {
	return &AppserviceMatrix{
		as:  as,
		log: log.With().Str("component", "matrix_api").Logger(),
	}
}

func (am *AppserviceMatrix) RegisterGhost(ctx context.Context, ghost id.UserID) error {
	if err := am.as.Intent(ghost).EnsureRegistered(ctx); err != nil {
		return fmt.Errorf("failed to register %s: %w", ghost, err)
	}
	return nil
}

func (am *AppserviceMatrix) CreateRoom(ctx context.Context, aliasLocalpart string) (id.RoomID, error) {
	resp, err := am.as.BotIntent().CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Visibility:    "private",
		RoomAliasName: aliasLocalpart,
		Preset:        "private_chat",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create room for alias %q: %w", aliasLocalpart, err)
	}
	return resp.RoomID, nil
}

func (am *AppserviceMatrix) SetRoomAlias(ctx context.Context, alias id.RoomAlias, roomID id.RoomID) error {
	_, err := am.as.BotClient().CreateAlias(ctx, alias, roomID)
	if err != nil {
		return fmt.Errorf("failed to set alias %s on %s: %w", alias, roomID, err)
	}
	return nil
}

func (am *AppserviceMatrix) RoomAliases(ctx context.Context, roomID id.RoomID) ([]id.RoomAlias, error) {
	resp, err := am.as.BotClient().GetAliases(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get aliases of %s: %w", roomID, err)
	}
	return resp.Aliases, nil
}

func (am *AppserviceMatrix) EnsureJoined(ctx context.Context, ghost id.UserID, roomID id.RoomID) error {
	if err := am.as.Intent(ghost).EnsureJoined(ctx, roomID); err != nil {
		return fmt.Errorf("failed to join %s to %s: %w", ghost, roomID, err)
	}
	return nil
}

func (am *AppserviceMatrix) SendMessage(ctx context.Context, roomID id.RoomID, sender id.UserID, content *event.MessageEventContent) error {
	_, err := am.as.Intent(sender).SendMessageEvent(ctx, roomID, event.EventMessage, content)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", roomID, err)
	}
	return nil
}

func (am *AppserviceMatrix) SetDisplayName(ctx context.Context, ghost id.UserID, name string) error {
	if err := am.as.Intent(ghost).SetDisplayName(ctx, name); err != nil {
		return fmt.Errorf("failed to set display name of %s: %w", ghost, err)
	}
	return nil
}

func (am *AppserviceMatrix) DisplayName(ctx context.Context, user id.UserID) (string, error) {
	profile, err := am.as.BotClient().GetProfile(ctx, user)
	if err != nil {
		return "", fmt.Errorf("failed to get profile of %s: %w", user, err)
	}
	return profile.DisplayName, nil
}
