package ws

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"palabre/internal/content"
	"palabre/internal/metrics"
	"palabre/internal/models"
	"palabre/internal/profile"
	"palabre/internal/protocol"
	"palabre/internal/reactions"
	"palabre/internal/rooms"
)

// Store is the repository contract the dispatcher consumes. The concrete
// engine behind it is interchangeable; only the access contract matters
// here.
type Store interface {
	Append(msg *models.Message) error
	RecentHistory(limit int) ([]models.Message, error)
	DeleteOne(timestamp int64, requesterUserID string) (bool, error)
	ClearAll() error
	CountSince(threshold int64) (int, error)
	GroupInfo() (models.GroupInfo, error)
	UpdateGroupInfo(patch models.GroupPatch) (models.GroupInfo, error)
	Sweep(maxAge time.Duration, maxRows int, now time.Time) (int, error)
}

// DispatcherConfig bounds the history window and the soft row cap applied
// after each append. Age-based retention is the sweeper's job.
type DispatcherConfig struct {
	HistoryLimit int
	MaxRows      int
}

// Dispatcher routes decoded envelopes to the message store, profile
// registry, reaction engine and room registry, and decides the fan-out
// shape of the resulting events. Handlers are independent; a failure in one
// invocation never affects other connections.
type Dispatcher struct {
	hub       *Hub
	store     Store
	profiles  *profile.Registry
	reactions *reactions.Engine
	rooms     *rooms.Registry
	cfg       DispatcherConfig
}

func NewDispatcher(hub *Hub, store Store, profiles *profile.Registry, engine *reactions.Engine, roomReg *rooms.Registry, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		hub:       hub,
		store:     store,
		profiles:  profiles,
		reactions: engine,
		rooms:     roomReg,
		cfg:       cfg,
	}
}

// HandleConnect unicasts the recent history window (newest first, per the
// client convention) and the group metadata to the new connection.
func (d *Dispatcher) HandleConnect(connID string) {
	history, err := d.store.RecentHistory(d.cfg.HistoryLimit)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: load history failed: %v", connID, err)
	} else {
		for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
			history[i], history[j] = history[j], history[i]
		}
		if history == nil {
			history = []models.Message{}
		}
		d.hub.Send(connID, models.ServerEvent{Type: protocol.TypeLoadHistory, Data: history})
	}

	info, err := d.store.GroupInfo()
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: load group info failed: %v", connID, err)
		return
	}
	d.hub.Send(connID, models.ServerEvent{Type: protocol.TypeGroupInfo, Data: info})
}

// HandleMessage decodes and routes one inbound envelope. Malformed
// envelopes are logged and dropped; the connection stays open.
func (d *Dispatcher) HandleMessage(connID string, raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		metrics.MalformedEvents.Inc()
		log.Printf("connection %s: dropping envelope: %v", connID, err)
		return
	}

	switch ev := ev.(type) {
	case *protocol.ChatMessage:
		metrics.EventsIn.WithLabelValues(protocol.TypeChatMessage).Inc()
		d.handleChatMessage(connID, ev)
	case *protocol.ReactionToggle:
		metrics.EventsIn.WithLabelValues(protocol.TypeMessageReaction).Inc()
		d.handleReaction(connID, ev)
	case *protocol.PresencePing:
		metrics.EventsIn.WithLabelValues(ev.Kind).Inc()
		d.handlePresence(connID, ev)
	case *protocol.ProfileUpdate:
		metrics.EventsIn.WithLabelValues(protocol.TypeUpdateProfile).Inc()
		d.handleProfileUpdate(connID, ev)
	case *protocol.ProfileGet:
		metrics.EventsIn.WithLabelValues(protocol.TypeGetUserProfile).Inc()
		d.handleProfileGet(connID, ev)
	case *protocol.DeleteMessage:
		metrics.EventsIn.WithLabelValues(protocol.TypeDeleteMessage).Inc()
		d.handleDelete(connID, ev)
	case *protocol.ClearMessages:
		metrics.EventsIn.WithLabelValues(protocol.TypeClearMessages).Inc()
		d.handleClear(connID)
	case *protocol.GetGroupInfo:
		metrics.EventsIn.WithLabelValues(protocol.TypeGetGroupInfo).Inc()
		d.handleGroupInfoGet(connID)
	case *protocol.UpdateGroupInfo:
		metrics.EventsIn.WithLabelValues(protocol.TypeUpdateGroupInfo).Inc()
		d.handleGroupInfoUpdate(connID, ev)
	case *protocol.CheckMessages:
		metrics.EventsIn.WithLabelValues(protocol.TypeCheckMessages).Inc()
		d.handleCheckMessages(connID, ev)
	case *protocol.JoinRoom:
		metrics.EventsIn.WithLabelValues(protocol.TypeJoinRoom).Inc()
		d.handleJoinRoom(connID, ev)
	case *protocol.Signal:
		metrics.EventsIn.WithLabelValues(ev.Kind).Inc()
		d.handleSignal(connID, ev)
	case *protocol.MediaState:
		metrics.EventsIn.WithLabelValues(ev.Kind).Inc()
		d.handleMediaState(connID, ev)
	}
}

// HandleDisconnect announces the departure to the rest of the connection's
// signaling room, if it was in one. The room registry guarantees the
// announcement happens at most once per connection.
func (d *Dispatcher) HandleDisconnect(connID string) {
	roomID, ok := d.rooms.Leave(connID)
	if !ok {
		return
	}
	d.broadcastRoom(roomID, connID, models.ServerEvent{
		Type: protocol.TypeUserLeft,
		Data: connID,
	})
}

func (d *Dispatcher) handleChatMessage(connID string, ev *protocol.ChatMessage) {
	msg := ev.Message
	msg.Username = content.Sanitize(msg.Username)
	msg.Text = content.Sanitize(msg.Text)
	msg.Bio = content.Sanitize(msg.Bio)
	msg.Status = content.Sanitize(msg.Status)
	if msg.ReplyTo != nil {
		msg.ReplyTo.Username = content.Sanitize(msg.ReplyTo.Username)
		msg.ReplyTo.Text = content.Sanitize(msg.ReplyTo.Text)
	}
	if msg.MessageImage != "" && !content.ValidInlineImage(msg.MessageImage) {
		log.Printf("connection %s: dropping non-image inline payload", connID)
		msg.MessageImage = ""
	}

	if err := d.store.Append(&msg); err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: append failed: %v", connID, err)
		return
	}

	// Soft cap on stored history; best effort, the hourly sweep is the
	// backstop for age-based retention.
	if _, err := d.store.Sweep(0, d.cfg.MaxRows, time.Now()); err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("history cap sweep failed: %v", err)
	}

	d.hub.Broadcast(models.ServerEvent{Type: protocol.TypeChatMessage, Data: msg})
}

func (d *Dispatcher) handleReaction(connID string, ev *protocol.ReactionToggle) {
	list, err := d.reactions.Toggle(ev.Timestamp, ev.UserID, ev.Emoji)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			metrics.StoreErrors.Inc()
			log.Printf("connection %s: reaction toggle failed: %v", connID, err)
		}
		return
	}
	if list == nil {
		list = []models.Reaction{}
	}
	d.hub.Broadcast(models.ServerEvent{
		Type: protocol.TypeReactionUpdated,
		Data: reactionUpdate{Timestamp: ev.Timestamp, Reactions: list},
	})
}

func (d *Dispatcher) handlePresence(connID string, ev *protocol.PresencePing) {
	out := models.ServerEvent{}
	switch ev.Kind {
	case protocol.TypeTyping:
		out.Type = protocol.TypeUserTyping
		out.Data = ev.Data
	case protocol.TypeStopTyping:
		out.Type = protocol.TypeUserStopTyping
	case protocol.TypeRecording:
		out.Type = protocol.TypeUserRecording
		out.Data = ev.Data
	case protocol.TypeStopRecording:
		out.Type = protocol.TypeUserStopRec
	}
	d.hub.Broadcast(out, connID)
}

func (d *Dispatcher) handleProfileUpdate(connID string, ev *protocol.ProfileUpdate) {
	patch := ev.Data
	patch.Username = content.Sanitize(patch.Username)
	sanitizeNullable(&patch.Bio)
	sanitizeNullable(&patch.Status)

	merged, err := d.profiles.Update(patch)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: profile update failed: %v", connID, err)
		return
	}
	d.hub.Broadcast(models.ServerEvent{Type: protocol.TypeProfileUpdated, Data: merged})
}

func (d *Dispatcher) handleProfileGet(connID string, ev *protocol.ProfileGet) {
	p, found, err := d.profiles.Get(ev.UserID)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: profile lookup failed: %v", connID, err)
		return
	}
	out := models.ServerEvent{Type: protocol.TypeUserProfileData}
	if found {
		out.Data = p
	}
	d.hub.Send(connID, out)
}

func (d *Dispatcher) handleDelete(connID string, ev *protocol.DeleteMessage) {
	ident := models.ClaimedIdentity{ConnectionID: connID, UserID: ev.UserID}
	deleted, err := d.store.DeleteOne(ev.Timestamp, ident.UserID)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: delete failed: %v", connID, err)
		return
	}
	// Missing row and non-owner look identical: no broadcast.
	if !deleted {
		return
	}
	d.hub.Broadcast(models.ServerEvent{
		Type: protocol.TypeMessageDeleted,
		Data: timestampRef{Timestamp: ev.Timestamp},
	})
}

func (d *Dispatcher) handleClear(connID string) {
	if err := d.store.ClearAll(); err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: clear failed: %v", connID, err)
		return
	}
	d.profiles.Reset()
	d.hub.Broadcast(models.ServerEvent{Type: protocol.TypeMessagesCleared})
}

func (d *Dispatcher) handleGroupInfoGet(connID string) {
	info, err := d.store.GroupInfo()
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: group info failed: %v", connID, err)
		return
	}
	d.hub.Send(connID, models.ServerEvent{Type: protocol.TypeGroupInfo, Data: info})
}

func (d *Dispatcher) handleGroupInfoUpdate(connID string, ev *protocol.UpdateGroupInfo) {
	patch := ev.Data
	sanitizeNullable(&patch.Name)
	sanitizeNullable(&patch.Description)

	merged, err := d.store.UpdateGroupInfo(patch)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: group info update failed: %v", connID, err)
		return
	}
	d.hub.Broadcast(models.ServerEvent{Type: protocol.TypeGroupInfoUpdated, Data: merged})
}

func (d *Dispatcher) handleCheckMessages(connID string, ev *protocol.CheckMessages) {
	n, err := d.store.CountSince(ev.LastClear)
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("connection %s: count failed: %v", connID, err)
		return
	}
	d.hub.Send(connID, models.ServerEvent{
		Type: protocol.TypeMessagesExist,
		Data: existence{Exists: n > 0},
	})
}

func (d *Dispatcher) handleJoinRoom(connID string, ev *protocol.JoinRoom) {
	if ev.RoomID == "" {
		return
	}
	// Switching rooms without an explicit leave announces the departure to
	// the old room first.
	if prev, switched := d.rooms.Join(connID, ev.RoomID); switched {
		d.broadcastRoom(prev, connID, models.ServerEvent{
			Type: protocol.TypeUserLeft,
			Data: connID,
		})
	}
	d.broadcastRoom(ev.RoomID, connID, models.ServerEvent{
		Type: protocol.TypeUserJoined,
		Data: roomPeer{UserID: connID, Username: content.Sanitize(ev.Username), Image: ev.Image},
	})
}

func (d *Dispatcher) handleSignal(connID string, ev *protocol.Signal) {
	out := models.ServerEvent{Type: ev.Kind}
	switch ev.Kind {
	case protocol.TypeOffer:
		out.Data = signalOffer{SDP: ev.SDP, From: connID, Username: ev.Username, Image: ev.Image}
	case protocol.TypeAnswer:
		out.Data = signalAnswer{SDP: ev.SDP, From: connID}
	case protocol.TypeICECandidate:
		out.Data = signalCandidate{Candidate: ev.Candidate, From: connID}
	}
	// Disconnected target: silent drop.
	d.hub.Send(ev.Target, out)
}

func (d *Dispatcher) handleMediaState(connID string, ev *protocol.MediaState) {
	roomID, ok := d.rooms.Room(connID)
	if !ok {
		return
	}
	d.broadcastRoom(roomID, connID, models.ServerEvent{
		Type: ev.Kind,
		Data: mediaState{UserID: connID, Enabled: ev.Enabled},
	})
}

func (d *Dispatcher) broadcastRoom(roomID, except string, ev models.ServerEvent) {
	for _, member := range d.rooms.Members(roomID) {
		if member == except {
			continue
		}
		d.hub.Send(member, ev)
	}
}

func sanitizeNullable(n *models.Nullable) {
	if n.Defined && n.Value != nil {
		clean := content.Sanitize(*n.Value)
		n.Value = &clean
	}
}

// Outbound payload shapes.

type reactionUpdate struct {
	Timestamp int64             `json:"timestamp"`
	Reactions []models.Reaction `json:"reactions"`
}

type timestampRef struct {
	Timestamp int64 `json:"timestamp"`
}

type existence struct {
	Exists bool `json:"exists"`
}

type roomPeer struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Image    string `json:"image,omitempty"`
}

type signalOffer struct {
	SDP      json.RawMessage `json:"sdp"`
	From     string          `json:"from"`
	Username string          `json:"username,omitempty"`
	Image    string          `json:"image,omitempty"`
}

type signalAnswer struct {
	SDP  json.RawMessage `json:"sdp"`
	From string          `json:"from"`
}

type signalCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type mediaState struct {
	UserID  string `json:"userId"`
	Enabled bool   `json:"enabled"`
}
