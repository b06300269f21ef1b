package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// Message is a single chat message. Timestamp (unix milliseconds) doubles as
// the primary key: lookups, reaction toggles, deletion and client-side
// reconciliation all key on it.
type Message struct {
	ID            string     `json:"id,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	Username      string     `json:"username,omitempty"`
	Text          string     `json:"text,omitempty"`
	Time          string     `json:"time,omitempty"` // pre-formatted display string, not authoritative
	Timestamp     int64      `json:"timestamp"`
	Color         string     `json:"color,omitempty"`
	Image         string     `json:"image,omitempty"` // sender avatar at send time
	MessageImage  string     `json:"messageImage,omitempty"`
	Audio         string     `json:"audio,omitempty"`
	AudioWaveform string     `json:"audioWaveform,omitempty"`
	AudioDuration int        `json:"audioDuration,omitempty"` // seconds
	IsVisio       bool       `json:"isVisio,omitempty"`
	RoomID        string     `json:"roomId,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Status        string     `json:"status,omitempty"`
	Reactions     []Reaction `json:"reactions,omitempty"`
	ReplyTo       *ReplyRef  `json:"replyTo,omitempty"`
}

// Reaction is one (user, emoji) pair on a message. At most one per userId.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ReplyRef is a denormalized snapshot of the message being replied to,
// not a live reference.
type ReplyRef struct {
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// GroupInfo is the singleton group metadata record.
type GroupInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// Profile is the current identity of a user, derived from their most
// recent message row.
type Profile struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Image    string `json:"image,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ClaimedIdentity is the identity a connection claims on a given envelope.
// The server does not bind connections to users; any connection may claim
// any userId on each message. Keeping the claim explicit per call leaves
// room for a future auth layer without touching handler logic.
type ClaimedIdentity struct {
	ConnectionID string
	UserID       string
	Username     string
}

// ServerEvent is one outbound envelope.
type ServerEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Nullable is a string field that distinguishes "absent" from "explicit
// null" in a JSON patch. Absent fields preserve the stored value, explicit
// null clears it.
type Nullable struct {
	Defined bool
	Value   *string
}

func (n *Nullable) UnmarshalJSON(data []byte) error {
	n.Defined = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

func (n Nullable) MarshalJSON() ([]byte, error) {
	if !n.Defined || n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// String returns the patch value, with explicit null collapsing to "".
func (n Nullable) String() string {
	if n.Value == nil {
		return ""
	}
	return *n.Value
}

// Apply merges the field into a stored value: absent keeps prev, defined
// (including null) overwrites.
func (n Nullable) Apply(prev string) string {
	if !n.Defined {
		return prev
	}
	return n.String()
}

// NullableOf wraps a plain value as a defined Nullable. Test helper mostly.
func NullableOf(s string) Nullable {
	return Nullable{Defined: true, Value: &s}
}

// NullableNull is an explicit null field.
func NullableNull() Nullable {
	return Nullable{Defined: true}
}

// ProfilePatch is a user-submitted profile update.
type ProfilePatch struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Image    Nullable `json:"image"`
	Bio      Nullable `json:"bio"`
	Status   Nullable `json:"status"`
}

// GroupPatch is a partial update of the group metadata singleton.
type GroupPatch struct {
	Name        Nullable `json:"name"`
	Description Nullable `json:"description"`
	Image       Nullable `json:"image"`
}
