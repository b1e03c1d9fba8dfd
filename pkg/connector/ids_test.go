// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"testing"

	"maunium.net/go/mautrix/id"
)

var testNS = Namespace{Prefix: "skype", Domain: "bar"}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"8:live:gv_grudinin",
		"19:some-thread@thread.skype",
		"plain",
		"",
		"with spaces and :#@ reserved chars",
		"ünïcödé 日本語",
	}
	for _, in := range inputs {
		got, err := DecodeRemoteID(EncodeRemoteID(in))
		if err != nil {
			t.Errorf("DecodeRemoteID(EncodeRemoteID(%q)): unexpected error %v", in, err)
			continue
		}
		if got != in {
			t.Errorf("round trip of %q: got %q", in, got)
		}
	}
}

func TestEncodeInjective(t *testing.T) {
	t.Parallel()
	inputs := []string{"a", "b", "ab", "a:b", "a_b", "8:live:x", "8:live:y"}
	seen := make(map[string]string)
	for _, in := range inputs {
		enc := EncodeRemoteID(in)
		if prev, ok := seen[enc]; ok {
			t.Errorf("collision: %q and %q both encode to %q", prev, in, enc)
		}
		seen[enc] = in
	}
}

func TestEncodeKnownFragment(t *testing.T) {
	t.Parallel()
	// Fragment published by earlier versions of the bridge; the encoding
	// must stay bit-exact for those aliases to keep resolving.
	if got := EncodeRemoteID("8:live:gv_grudinin"); got != "ODpsaXZlOmd2X2dydWRpbmlu" {
		t.Errorf("EncodeRemoteID: got %q, want %q", got, "ODpsaXZlOmd2X2dydWRpbmlu")
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	for _, fragment := range []string{"not base64!!", "a", "ab=c", "%%%"} {
		_, err := DecodeRemoteID(fragment)
		if !errors.Is(err, ErrMalformedFragment) {
			t.Errorf("DecodeRemoteID(%q): got %v, want ErrMalformedFragment", fragment, err)
		}
	}
}

func TestRoomAliasRoundTrip(t *testing.T) {
	t.Parallel()
	conv := "19:chat@thread.skype"
	alias := testNS.RoomAlias(conv)
	got, err := testNS.ParseRoomAlias(alias)
	if err != nil {
		t.Fatalf("ParseRoomAlias(%q): %v", alias, err)
	}
	if got != conv {
		t.Errorf("alias round trip: got %q, want %q", got, conv)
	}
}

func TestGhostMXIDRoundTrip(t *testing.T) {
	t.Parallel()
	user := "8:live:gv_grudinin"
	mxid := testNS.GhostMXID(user)
	if mxid != id.UserID("@skype_ODpsaXZlOmd2X2dydWRpbmlu:bar") {
		t.Errorf("GhostMXID: got %q", mxid)
	}
	got, err := testNS.ParseGhostMXID(mxid)
	if err != nil {
		t.Fatalf("ParseGhostMXID(%q): %v", mxid, err)
	}
	if got != user {
		t.Errorf("ghost round trip: got %q, want %q", got, user)
	}
}

func TestParseRoomAliasForeign(t *testing.T) {
	t.Parallel()
	cases := []id.RoomAlias{
		"#general:bar",              // no prefix
		"#skype_YWJj:other.domain",  // wrong domain
		"#telegram_YWJj:bar",        // wrong prefix
		"skype_YWJj:bar",            // missing sigil
		"#skype_YWJj",               // missing domain
	}
	for _, alias := range cases {
		_, err := testNS.ParseRoomAlias(alias)
		if !errors.Is(err, ErrNotBridgeAlias) {
			t.Errorf("ParseRoomAlias(%q): got %v, want ErrNotBridgeAlias", alias, err)
		}
	}
}

func TestParseGhostMXIDErrors(t *testing.T) {
	t.Parallel()
	if _, err := testNS.ParseGhostMXID("@test_user:bar"); !errors.Is(err, ErrNotGhostMXID) {
		t.Errorf("non-ghost MXID: got %v, want ErrNotGhostMXID", err)
	}
	if _, err := testNS.ParseGhostMXID("@skype_???:bar"); !errors.Is(err, ErrMalformedFragment) {
		t.Errorf("malformed fragment: got %v, want ErrMalformedFragment", err)
	}
}

func TestIsGhost(t *testing.T) {
	t.Parallel()
	cases := []struct {
		mxid id.UserID
		want bool
	}{
		{"@skype_ODpsaXZlOmd2X2dydWRpbmlu:bar", true},
		{"@test_user:bar", false},
		{"@skype_YWJj:other.domain", false},
		{"@skypeuser:bar", false},
	}
	for _, tc := range cases {
		if got := testNS.IsGhost(tc.mxid); got != tc.want {
			t.Errorf("IsGhost(%q): got %v, want %v", tc.mxid, got, tc.want)
		}
	}
}
