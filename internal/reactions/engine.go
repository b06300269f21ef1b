// Package reactions implements toggle/replace semantics for per-message
// emoji reactions.
package reactions

import (
	"sync"

	"palabre/internal/models"
)

const lockStripes = 64

// Store is the slice of the message store the engine needs.
type Store interface {
	Reactions(timestamp int64) ([]models.Reaction, error)
	UpdateReactions(timestamp int64, reactions []models.Reaction) error
}

// Engine serializes reaction read-modify-writes per message timestamp so
// concurrent toggles never lose updates. Emoji content is not validated;
// any string is accepted.
type Engine struct {
	store Store
	cap   int
	locks [lockStripes]sync.Mutex
}

func New(store Store, cap int) *Engine {
	return &Engine{store: store, cap: cap}
}

// Toggle applies one (userId, emoji) toggle and returns the resulting list:
//   - same emoji already present for the user: remove it
//   - different emoji present: replace in place
//   - otherwise: append
//
// The list is soft-capped: when it grows past the cap the oldest entry is
// evicted, regardless of user.
func (e *Engine) Toggle(timestamp int64, userID, emoji string) ([]models.Reaction, error) {
	mu := &e.locks[uint64(timestamp)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	reactions, err := e.store.Reactions(timestamp)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range reactions {
		if r.UserID == userID {
			idx = i
			break
		}
	}

	switch {
	case idx >= 0 && reactions[idx].Emoji == emoji:
		reactions = append(reactions[:idx], reactions[idx+1:]...)
	case idx >= 0:
		reactions[idx].Emoji = emoji
	default:
		reactions = append(reactions, models.Reaction{UserID: userID, Emoji: emoji})
	}

	if len(reactions) > e.cap {
		reactions = reactions[len(reactions)-e.cap:]
	}

	if err := e.store.UpdateReactions(timestamp, reactions); err != nil {
		return nil, err
	}
	return reactions, nil
}
