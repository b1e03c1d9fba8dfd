// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
)

// ProfileSource fetches a display name for a Skype user from the remote
// network. Implemented by SkypeClient; tests substitute a fake.
type ProfileSource interface {
	DisplayName(ctx context.Context, remoteUserID string) (string, error)
}

// DisplayResolver resolves human-readable names for Skype users. Display
// names are cosmetic: resolution never fails outward, falling back to the raw
// Skype identifier, and successful lookups are cached for the lifetime of the
// process. Staleness is acceptable.
type DisplayResolver struct {
	source ProfileSource
	format func(name string) string

	cache  *exsync.Map[string, string]
	pushed *exsync.Map[string, string]
	log    zerolog.Logger
}

// NewDisplayResolver creates a resolver. format shapes the resolved name for
// Matrix profiles (e.g. appending a network suffix); pass nil to use names
// as-is.
func NewDisplayResolver(source ProfileSource, format func(name string) string, log zerolog.Logger) *DisplayResolver {
	if format == nil {
		format = func(name string) string { return name }
	}
	return &DisplayResolver{
		source: source,
		format: format,
		cache:  exsync.NewMap[string, string](),
		pushed: exsync.NewMap[string, string](),
		log:    log.With().Str("component", "display_resolver").Logger(),
	}
}

// DisplayName returns the formatted display name for a Skype user. Failures
// are logged and degrade to the raw identifier so message delivery is never
// blocked on profile lookups.
func (r *DisplayResolver) DisplayName(ctx context.Context, remoteUserID string) string {
	if cached, ok := r.cache.Get(remoteUserID); ok {
		return cached
	}
	name, err := r.source.DisplayName(ctx, remoteUserID)
	if err != nil || name == "" {
		if err != nil {
			r.log.Warn().Err(err).
				Str("remote_user_id", remoteUserID).
				Msg("Display name lookup failed, using raw identifier")
		}
		return r.format(remoteUserID)
	}
	formatted := r.format(name)
	r.cache.Set(remoteUserID, formatted)
	return formatted
}

// Observe seeds the cache with a name carried on an inbound event, saving the
// profile round trip for senders whose events already name them.
func (r *DisplayResolver) Observe(remoteUserID, name string) {
	if name == "" {
		return
	}
	r.cache.Set(remoteUserID, r.format(name))
}

// ShouldPush reports whether name differs from the last display name pushed
// to the Matrix profile of this user's ghost.
func (r *DisplayResolver) ShouldPush(remoteUserID, name string) bool {
	last, ok := r.pushed.Get(remoteUserID)
	return !ok || last != name
}

// MarkPushed records that name is now set on the ghost's Matrix profile.
func (r *DisplayResolver) MarkPushed(remoteUserID, name string) {
	r.pushed.Set(remoteUserID, name)
}
