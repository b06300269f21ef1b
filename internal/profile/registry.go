// Package profile derives the "current" identity of a user from their most
// recent message row and propagates profile patches across history.
package profile

import (
	"palabre/internal/models"

	"github.com/c-pro/geche"
)

// Store is the slice of the message store the registry needs.
type Store interface {
	FindLatestProfile(userID, username string) (models.Profile, bool, error)
	RewriteProfileFields(patch models.ProfilePatch, matchUsername bool) error
}

// Registry resolves and updates user profiles. Lookups go through a small
// cache keyed by userId; every rewrite replaces the cached entry.
type Registry struct {
	store Store
	// usernameFallback makes lookups match rows by username when the userId
	// matches nothing. Two userIds sharing a username get merged then; the
	// ambiguity is inherited and kept switchable.
	usernameFallback bool
	cache            geche.Geche[string, models.Profile]
}

func New(store Store, usernameFallback bool) *Registry {
	return &Registry{
		store:            store,
		usernameFallback: usernameFallback,
		cache:            geche.NewMapCache[string, models.Profile](),
	}
}

// Update merges a patch into the latest known profile, rewrites the stored
// rows and returns the merged result for broadcast to all connections.
// Patch fields present win (explicit null clears), absent fields keep the
// prior value.
func (r *Registry) Update(patch models.ProfilePatch) (models.Profile, error) {
	username := ""
	if r.usernameFallback {
		username = patch.Username
	}
	prior, _, err := r.store.FindLatestProfile(patch.UserID, username)
	if err != nil {
		return models.Profile{}, err
	}

	merged := models.Profile{
		UserID:   patch.UserID,
		Username: patch.Username,
		Image:    patch.Image.Apply(prior.Image),
		Bio:      patch.Bio.Apply(prior.Bio),
		Status:   patch.Status.Apply(prior.Status),
	}

	if err := r.store.RewriteProfileFields(patch, r.usernameFallback); err != nil {
		return models.Profile{}, err
	}

	if patch.UserID != "" {
		r.cache.Set(patch.UserID, merged)
	}
	return merged, nil
}

// Get returns the current profile for a user, or ok=false when the user has
// no message rows. Unknown users are a normal negative result, not an
// error.
func (r *Registry) Get(userID string) (models.Profile, bool, error) {
	if p, err := r.cache.Get(userID); err == nil {
		return p, true, nil
	}
	p, found, err := r.store.FindLatestProfile(userID, "")
	if err != nil || !found {
		return models.Profile{}, false, err
	}
	r.cache.Set(userID, p)
	return p, true, nil
}

// Reset drops every cached profile. Called when history is wiped.
func (r *Registry) Reset() {
	for key := range r.cache.Snapshot() {
		_ = r.cache.Del(key)
	}
}
