package room_test

import (
	"testing"

	"github.com/ideateGudy/chat-backend/pkg/room"
)

func TestIDCommutative(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"9", "10"},
		{"64f0c1e2a7b3d4e5f6a7b8c9", "64f0c1e2a7b3d4e5f6a7b8c0"},
	}
	for _, p := range pairs {
		ab := room.ID(p[0], p[1])
		ba := room.ID(p[1], p[0])
		if ab != ba {
			t.Errorf("ID(%q,%q)=%q but ID(%q,%q)=%q", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestIDSortsLexicographically(t *testing.T) {
	if got := room.ID("u2", "u1"); got != "u1_u2" {
		t.Errorf("expected u1_u2, got %q", got)
	}
	// "10" < "9" as strings; byte order, not numeric order.
	if got := room.ID("9", "10"); got != "10_9" {
		t.Errorf("expected 10_9, got %q", got)
	}
}

func TestGroupIDNeverCollidesWithPrivate(t *testing.T) {
	g := room.GroupID("u1_u2")
	if g == room.ID("u1", "u2") {
		t.Error("group room id collided with private room id")
	}
}

func TestUserRoom(t *testing.T) {
	if got := room.UserID("u1"); got != "user:u1" {
		t.Errorf("expected user:u1, got %q", got)
	}
}

func TestParseGroup(t *testing.T) {
	if gid, ok := room.ParseGroup(room.GroupID("g1")); !ok || gid != "g1" {
		t.Errorf("expected (g1, true), got (%q, %v)", gid, ok)
	}
	if _, ok := room.ParseGroup("u1_u2"); ok {
		t.Error("private room id parsed as a group room")
	}
}

func TestHasParticipant(t *testing.T) {
	cases := []struct {
		roomID, userID string
		want           bool
	}{
		{"u1_u2", "u1", true},
		{"u1_u2", "u2", true},
		{"u1_u2", "u3", false},
		{"u1_u2", "", false},
		// Ids containing the separator still resolve to their own pair.
		{room.ID("a_b", "c"), "a_b", true},
		{room.ID("a_b", "c"), "c", true},
		{room.ID("a_b", "c"), "b", false},
		{"u1_u2", "u1_u2", false},
	}
	for _, tc := range cases {
		if got := room.HasParticipant(tc.roomID, tc.userID); got != tc.want {
			t.Errorf("HasParticipant(%q, %q) = %v, want %v", tc.roomID, tc.userID, got, tc.want)
		}
	}
}
