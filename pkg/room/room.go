// Package room derives broadcast room identifiers.
//
// A private conversation room is addressed by a deterministic identifier
// computed from the two participant ids, so both sides always resolve the
// same room regardless of who initiates.
package room

import "strings"

// Separator joins the sorted participant pair in a private room id.
const Separator = "_"

const groupPrefix = "group:"

// ID returns the private room identifier for a pair of users. It is
// commutative: ID(a, b) == ID(b, a). Behaviour is undefined for a == b;
// callers must reject self-chat before deriving a room.
func ID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + Separator + userB
}

// GroupID returns the room identifier for a group. The prefix keeps group
// rooms from ever colliding with a private pair identifier.
func GroupID(groupID string) string {
	return groupPrefix + groupID
}

// UserID returns the per-user room that only the user's own connections
// join. Used for origin-only notifications.
func UserID(userID string) string {
	return "user:" + userID
}

// ParseGroup extracts the group id from a group room identifier.
func ParseGroup(roomID string) (string, bool) {
	return strings.CutPrefix(roomID, groupPrefix)
}

// HasParticipant reports whether userID is one of the pair a private
// room id names. User ids may themselves contain the separator, so the
// id is reconstructed rather than split.
func HasParticipant(roomID, userID string) bool {
	if partner, ok := strings.CutPrefix(roomID, userID+Separator); ok && ID(userID, partner) == roomID {
		return true
	}
	if partner, ok := strings.CutSuffix(roomID, Separator+userID); ok && ID(userID, partner) == roomID {
		return true
	}
	return false
}
