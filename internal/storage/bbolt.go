package storage

import (
	"fmt"
	"time"

	"palabre/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketMessages = []byte("messages")
	bucketGroup    = []byte("group")
)

// Options carry the defaults used when the group singleton has never been
// written.
type Options struct {
	GroupName        string
	GroupDescription string
}

type BboltStore struct {
	db   *bbolt.DB
	opts Options
	now  func() time.Time
}

func NewBboltStore(path string, opts Options) (*BboltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketGroup); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStore{db: db, opts: opts, now: time.Now}, nil
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}

// Append persists a new message row. A zero timestamp gets the current time
// in milliseconds; a colliding timestamp is bumped forward until the key is
// free, so no two rows ever share the primary key. The message is mutated
// with the timestamp actually assigned.
func (s *BboltStore) Append(msg *models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)

		if msg.Timestamp == 0 {
			msg.Timestamp = s.now().UnixMilli()
		}
		for b.Get(timestampKey(msg.Timestamp)) != nil {
			msg.Timestamp++
		}

		row := toDB(msg)
		data, err := row.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return b.Put(row.Key(), data)
	})
}

// RecentHistory returns at most limit most-recent messages, ascending by
// timestamp.
func (s *BboltStore) RecentHistory(limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		for k, v := c.Last(); k != nil && len(messages) < limit; k, v = c.Prev() {
			var row DBMessage
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, fromDB(&row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Walked newest-first; flip to ascending.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Reactions returns the reaction list of one message.
func (s *BboltStore) Reactions(timestamp int64) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMessages).Get(timestampKey(timestamp))
		if v == nil {
			return models.ErrNotFound
		}
		var row DBMessage
		if err := row.UnmarshalBinary(v); err != nil {
			return err
		}
		for _, r := range row.Reactions {
			reactions = append(reactions, models.Reaction(r))
		}
		return nil
	})
	return reactions, err
}

// UpdateReactions replaces the reaction list of one message.
func (s *BboltStore) UpdateReactions(timestamp int64, reactions []models.Reaction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		key := timestampKey(timestamp)
		v := b.Get(key)
		if v == nil {
			return models.ErrNotFound
		}
		var row DBMessage
		if err := row.UnmarshalBinary(v); err != nil {
			return err
		}
		row.Reactions = make([]DBReaction, len(reactions))
		for i, r := range reactions {
			row.Reactions[i] = DBReaction(r)
		}
		data, err := row.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// DeleteOne removes a message only when requester owns it. Missing row and
// non-owner are both silent no-ops: the caller cannot tell them apart.
func (s *BboltStore) DeleteOne(timestamp int64, requesterUserID string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		key := timestampKey(timestamp)
		v := b.Get(key)
		if v == nil {
			return nil
		}
		var row DBMessage
		if err := row.UnmarshalBinary(v); err != nil {
			return err
		}
		if row.UserID != requesterUserID {
			return nil
		}
		if err := b.Delete(key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ClearAll wipes the whole message history.
func (s *BboltStore) ClearAll() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketMessages); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketMessages)
		return err
	})
}

// CountSince returns the number of messages strictly newer than threshold.
func (s *BboltStore) CountSince(threshold int64) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		for k, _ := c.Seek(timestampKey(threshold + 1)); k != nil; k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// FindLatestProfile returns the profile snapshot from the newest row whose
// userId matches. When username is non-empty and no userId match exists,
// the newest row with that username is used instead.
func (s *BboltStore) FindLatestProfile(userID, username string) (models.Profile, bool, error) {
	var profile models.Profile
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		var byUsername *DBMessage
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var row DBMessage
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			if userID != "" && row.UserID == userID {
				profile = profileFromRow(&row)
				found = true
				return nil
			}
			if username != "" && byUsername == nil && row.Username == username {
				r := row
				byUsername = &r
			}
		}
		if byUsername != nil {
			profile = profileFromRow(byUsername)
			found = true
		}
		return nil
	})
	return profile, found, err
}

// RewriteProfileFields patches image/bio/status across every row matching
// the patch's userId (or username when matchUsername is set). Absent patch
// fields preserve each row's stored value, explicit null clears it.
func (s *BboltStore) RewriteProfileFields(patch models.ProfilePatch, matchUsername bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var row DBMessage
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			match := (patch.UserID != "" && row.UserID == patch.UserID) ||
				(matchUsername && patch.Username != "" && row.Username == patch.Username)
			if !match {
				continue
			}
			row.Image = patch.Image.Apply(row.Image)
			row.Bio = patch.Bio.Apply(row.Bio)
			row.Status = patch.Status.Apply(row.Status)
			data, err := row.MarshalBinary()
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sweep removes rows older than maxAge and rows beyond the newest maxRows.
// A maxAge of zero disables the age limit. Runs in a single transaction so
// concurrent appends never observe a partially swept history. Returns the
// number of rows removed.
func (s *BboltStore) Sweep(maxAge time.Duration, maxRows int, now time.Time) (int, error) {
	removed := 0
	cutoff := int64(0)
	if maxAge > 0 {
		cutoff = now.Add(-maxAge).UnixMilli()
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		remaining := b.Stats().KeyN
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if remaining <= maxRows && keyTimestamp(k) >= cutoff {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
			remaining--
		}
		return nil
	})
	return removed, err
}

// GroupInfo returns the singleton group metadata, falling back to the
// configured defaults when it has never been written.
func (s *BboltStore) GroupInfo() (models.GroupInfo, error) {
	info := models.GroupInfo{
		Name:        s.opts.GroupName,
		Description: s.opts.GroupDescription,
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		var row DBGroupInfo
		v := tx.Bucket(bucketGroup).Get(row.Key())
		if v == nil {
			return nil
		}
		if err := row.UnmarshalBinary(v); err != nil {
			return err
		}
		info = models.GroupInfo(row)
		return nil
	})
	return info, err
}

// UpdateGroupInfo patch-merges the singleton and returns the result.
func (s *BboltStore) UpdateGroupInfo(patch models.GroupPatch) (models.GroupInfo, error) {
	var merged models.GroupInfo
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketGroup)
		row := DBGroupInfo{
			Name:        s.opts.GroupName,
			Description: s.opts.GroupDescription,
		}
		if v := b.Get(row.Key()); v != nil {
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
		}
		row.Name = patch.Name.Apply(row.Name)
		row.Description = patch.Description.Apply(row.Description)
		row.Image = patch.Image.Apply(row.Image)
		data, err := row.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(row.Key(), data); err != nil {
			return err
		}
		merged = models.GroupInfo(row)
		return nil
	})
	return merged, err
}

func profileFromRow(row *DBMessage) models.Profile {
	return models.Profile{
		UserID:   row.UserID,
		Username: row.Username,
		Image:    row.Image,
		Bio:      row.Bio,
		Status:   row.Status,
	}
}

func toDB(msg *models.Message) *DBMessage {
	row := &DBMessage{
		ID:            msg.ID,
		UserID:        msg.UserID,
		Username:      msg.Username,
		Text:          msg.Text,
		Time:          msg.Time,
		Timestamp:     msg.Timestamp,
		Color:         msg.Color,
		Image:         msg.Image,
		MessageImage:  msg.MessageImage,
		Audio:         msg.Audio,
		AudioWaveform: msg.AudioWaveform,
		AudioDuration: msg.AudioDuration,
		IsVisio:       msg.IsVisio,
		RoomID:        msg.RoomID,
		Bio:           msg.Bio,
		Status:        msg.Status,
	}
	if len(msg.Reactions) > 0 {
		row.Reactions = make([]DBReaction, len(msg.Reactions))
		for i, r := range msg.Reactions {
			row.Reactions[i] = DBReaction(r)
		}
	}
	if msg.ReplyTo != nil {
		row.ReplyTo = (*DBReplyRef)(msg.ReplyTo)
	}
	return row
}

func fromDB(row *DBMessage) models.Message {
	msg := models.Message{
		ID:            row.ID,
		UserID:        row.UserID,
		Username:      row.Username,
		Text:          row.Text,
		Time:          row.Time,
		Timestamp:     row.Timestamp,
		Color:         row.Color,
		Image:         row.Image,
		MessageImage:  row.MessageImage,
		Audio:         row.Audio,
		AudioWaveform: row.AudioWaveform,
		AudioDuration: row.AudioDuration,
		IsVisio:       row.IsVisio,
		RoomID:        row.RoomID,
		Bio:           row.Bio,
		Status:        row.Status,
	}
	if len(row.Reactions) > 0 {
		msg.Reactions = make([]models.Reaction, len(row.Reactions))
		for i, r := range row.Reactions {
			msg.Reactions[i] = models.Reaction(r)
		}
	}
	if row.ReplyTo != nil {
		msg.ReplyTo = (*models.ReplyRef)(row.ReplyTo)
	}
	return msg
}
