// Package protocol decodes inbound client envelopes into a closed set of
// typed events. The wire format is JSON with a "type" discriminant; the
// remaining fields depend on the variant.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"palabre/internal/models"
)

// Inbound envelope types.
const (
	TypeChatMessage      = "chat message"
	TypeMessageReaction  = "message reaction"
	TypeTyping           = "typing"
	TypeStopTyping       = "stop typing"
	TypeRecording        = "recording"
	TypeStopRecording    = "stop recording"
	TypeUpdateProfile    = "update profile"
	TypeGetUserProfile   = "get user profile"
	TypeDeleteMessage    = "delete message"
	TypeClearMessages    = "clear messages"
	TypeGetGroupInfo     = "get group info"
	TypeUpdateGroupInfo  = "update group info"
	TypeCheckMessages    = "check messages exist"
	TypeJoinRoom         = "join-room"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypeVideoStateChange = "video-state-change"
	TypeMicStateChange   = "mic-state-change"
)

// Outbound envelope types.
const (
	TypeLoadHistory      = "load history"
	TypeGroupInfo        = "group info"
	TypeReactionUpdated  = "message reaction updated"
	TypeUserTyping       = "user typing"
	TypeUserStopTyping   = "user stop typing"
	TypeUserRecording    = "user recording"
	TypeUserStopRec      = "user stop recording"
	TypeProfileUpdated   = "profile updated"
	TypeUserProfileData  = "user profile data"
	TypeMessageDeleted   = "message deleted"
	TypeMessagesCleared  = "messages cleared"
	TypeGroupInfoUpdated = "group info updated"
	TypeMessagesExist    = "messages existence"
	TypeUserJoined       = "user-joined"
	TypeUserLeft         = "user-left"
)

var (
	ErrMissingType = errors.New("envelope missing type")
	ErrUnknownType = errors.New("unknown envelope type")
)

// ChatMessage carries the message fields at the top level of the envelope.
type ChatMessage struct {
	models.Message
}

type ReactionToggle struct {
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

// PresencePing is a typing or recording indicator. Payload is opaque to the
// server (the client sends the display name to show).
type PresencePing struct {
	Kind string // one of the typing/recording envelope types
	Data json.RawMessage
}

type ProfileUpdate struct {
	Data models.ProfilePatch `json:"data"`
}

type ProfileGet struct {
	UserID string `json:"userId"`
}

type DeleteMessage struct {
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId"`
}

type ClearMessages struct{}

type GetGroupInfo struct{}

type UpdateGroupInfo struct {
	Data models.GroupPatch `json:"data"`
}

type CheckMessages struct {
	LastClear int64 `json:"lastClear"`
}

type JoinRoom struct {
	RoomID   string `json:"roomID"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
}

// Signal is an opaque call-negotiation envelope (offer, answer or ICE
// candidate) addressed to one connection. SDP and Candidate are relayed
// without interpretation.
type Signal struct {
	Kind      string
	Target    string          `json:"target"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Username  string          `json:"username,omitempty"`
	Image     string          `json:"image,omitempty"`
}

// MediaState is a video or mic on/off announcement for the current room.
type MediaState struct {
	Kind    string
	Enabled bool `json:"enabled"`
}

type head struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one inbound envelope. The returned value is one of the
// concrete event structs above; callers type-switch on it.
func Decode(raw []byte) (any, error) {
	var h head
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if h.Type == "" {
		return nil, ErrMissingType
	}

	switch h.Type {
	case TypeChatMessage:
		var ev ChatMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeMessageReaction:
		var ev ReactionToggle
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeTyping, TypeStopTyping, TypeRecording, TypeStopRecording:
		return &PresencePing{Kind: h.Type, Data: h.Data}, nil
	case TypeUpdateProfile:
		var ev ProfileUpdate
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeGetUserProfile:
		var ev ProfileGet
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeDeleteMessage:
		var ev DeleteMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeClearMessages:
		return &ClearMessages{}, nil
	case TypeGetGroupInfo:
		return &GetGroupInfo{}, nil
	case TypeUpdateGroupInfo:
		var ev UpdateGroupInfo
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeCheckMessages:
		var ev CheckMessages
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeJoinRoom:
		var ev JoinRoom
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		return &ev, nil
	case TypeOffer, TypeAnswer, TypeICECandidate:
		var ev Signal
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		ev.Kind = h.Type
		return &ev, nil
	case TypeVideoStateChange, TypeMicStateChange:
		var ev MediaState
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Type, err)
		}
		ev.Kind = h.Type
		return &ev, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
}
