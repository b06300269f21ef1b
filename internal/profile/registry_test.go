package profile

import (
	"testing"

	"palabre/internal/models"
)

type memStore struct {
	profiles map[string]models.Profile // userId -> latest profile
	byName   map[string]models.Profile
	rewrites []models.ProfilePatch
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]models.Profile),
		byName:   make(map[string]models.Profile),
	}
}

func (s *memStore) FindLatestProfile(userID, username string) (models.Profile, bool, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, true, nil
	}
	if username != "" {
		if p, ok := s.byName[username]; ok {
			return p, true, nil
		}
	}
	return models.Profile{}, false, nil
}

func (s *memStore) RewriteProfileFields(patch models.ProfilePatch, matchUsername bool) error {
	s.rewrites = append(s.rewrites, patch)
	prev := s.profiles[patch.UserID]
	merged := models.Profile{
		UserID:   patch.UserID,
		Username: patch.Username,
		Image:    patch.Image.Apply(prev.Image),
		Bio:      patch.Bio.Apply(prev.Bio),
		Status:   patch.Status.Apply(prev.Status),
	}
	s.profiles[patch.UserID] = merged
	if patch.Username != "" {
		s.byName[patch.Username] = merged
	}
	return nil
}

func TestRegistry_PatchMerge(t *testing.T) {
	store := newMemStore()
	reg := New(store, false)

	merged, err := reg.Update(models.ProfilePatch{UserID: "u1", Username: "Alice", Bio: models.NullableOf("x")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if merged.Bio != "x" {
		t.Errorf("expected bio x, got %q", merged.Bio)
	}

	// Second patch touches status only; bio must survive.
	merged, err = reg.Update(models.ProfilePatch{UserID: "u1", Username: "Alice", Status: models.NullableOf("y")})
	if err != nil {
		t.Fatal(err)
	}
	if merged.Bio != "x" || merged.Status != "y" {
		t.Errorf("expected bio x and status y, got bio=%q status=%q", merged.Bio, merged.Status)
	}

	// Explicit null clears.
	merged, err = reg.Update(models.ProfilePatch{UserID: "u1", Username: "Alice", Bio: models.NullableNull()})
	if err != nil {
		t.Fatal(err)
	}
	if merged.Bio != "" || merged.Status != "y" {
		t.Errorf("expected cleared bio and kept status, got bio=%q status=%q", merged.Bio, merged.Status)
	}
}

func TestRegistry_Get(t *testing.T) {
	store := newMemStore()
	store.profiles["u1"] = models.Profile{UserID: "u1", Username: "Alice", Bio: "hi"}
	reg := New(store, false)

	p, found, err := reg.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || p.Bio != "hi" {
		t.Errorf("unexpected profile: found=%v %+v", found, p)
	}

	// Unknown user is a normal negative result.
	_, found, err = reg.Get("nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected unknown user to be not found")
	}
}

func TestRegistry_UsernameFallback(t *testing.T) {
	store := newMemStore()
	store.byName["Alice"] = models.Profile{UserID: "u1", Username: "Alice", Bio: "old"}

	// Fallback off: the patch sees no prior values.
	reg := New(store, false)
	merged, err := reg.Update(models.ProfilePatch{UserID: "u2", Username: "Alice", Status: models.NullableOf("here")})
	if err != nil {
		t.Fatal(err)
	}
	if merged.Bio != "" {
		t.Errorf("expected no merge without fallback, got bio=%q", merged.Bio)
	}

	// Fallback on: prior values found via username, identities merge.
	store = newMemStore()
	store.byName["Alice"] = models.Profile{UserID: "u1", Username: "Alice", Bio: "old"}
	reg = New(store, true)
	merged, err = reg.Update(models.ProfilePatch{UserID: "u2", Username: "Alice", Status: models.NullableOf("here")})
	if err != nil {
		t.Fatal(err)
	}
	if merged.Bio != "old" || merged.Status != "here" {
		t.Errorf("expected fallback merge, got %+v", merged)
	}
}

func TestRegistry_CacheInvalidation(t *testing.T) {
	store := newMemStore()
	store.profiles["u1"] = models.Profile{UserID: "u1", Username: "Alice", Bio: "one"}
	reg := New(store, false)

	if _, _, err := reg.Get("u1"); err != nil {
		t.Fatal(err)
	}

	// Update replaces the cached entry.
	if _, err := reg.Update(models.ProfilePatch{UserID: "u1", Username: "Alice", Bio: models.NullableOf("two")}); err != nil {
		t.Fatal(err)
	}
	p, found, err := reg.Get("u1")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if p.Bio != "two" {
		t.Errorf("expected updated bio from cache, got %q", p.Bio)
	}

	// Reset drops the cache; next Get goes back to the store.
	delete(store.profiles, "u1")
	reg.Reset()
	_, found, err = reg.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected miss after Reset with empty store")
	}
}
