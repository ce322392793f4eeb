package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	model "github.com/mindease/backend/internal/model/profile"
	"github.com/mindease/backend/internal/store"
)

var (
	// ErrNoCurrentUser means a repository operation that requires a
	// loaded profile was invoked without one. Contract violation, not
	// retryable.
	ErrNoCurrentUser = errors.New("no current user")
	// ErrNameRequired rejects profile creation without a display name.
	ErrNameRequired = errors.New("name is required")
)

// Service owns the single current-user record.
type Service struct {
	records store.RecordStore
}

// NewService builds the profile service on top of a record store.
func NewService(records store.RecordStore) *Service {
	return &Service{records: records}
}

// LoadCurrent reads the current-user pointer. On success it stamps
// lastActive and persists the touch.
func (s *Service) LoadCurrent(ctx context.Context) (model.User, bool, error) {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	user.Stats.LastActive = time.Now().UTC()
	if err := s.records.Put(ctx, store.CurrentUserKey(), user); err != nil {
		return model.User{}, false, fmt.Errorf("touch current user: %w", err)
	}
	return user, true, nil
}

// Peek reads the current user without touching lastActive.
func (s *Service) Peek(ctx context.Context) (model.User, bool, error) {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil || !ok {
		return model.User{}, false, err
	}
	return user, true, nil
}

// Login returns the current user, counting a new session, or creates
// one from the supplied partial record when none exists.
func (s *Service) Login(ctx context.Context, partial model.User) (model.User, error) {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return s.Create(ctx, partial)
	}
	user.Stats.TotalSessions++
	user.Stats.LastActive = time.Now().UTC()
	if err := s.records.Put(ctx, store.CurrentUserKey(), user); err != nil {
		return model.User{}, fmt.Errorf("persist login: %w", err)
	}
	return user, nil
}

// Create fills defaults for any omitted field, assigns an identity,
// persists, and returns the full record.
func (s *Service) Create(ctx context.Context, partial model.User) (model.User, error) {
	if partial.Name == "" {
		return model.User{}, ErrNameRequired
	}

	user := partial
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Preferences == (model.Preferences{}) {
		user.Preferences = model.DefaultPreferences()
	}
	if user.Stats.TotalSessions == 0 {
		user.Stats.TotalSessions = 1
	}
	user.Stats.LastActive = time.Now().UTC()

	if err := s.records.Put(ctx, store.CurrentUserKey(), user); err != nil {
		return model.User{}, fmt.Errorf("persist new user: %w", err)
	}
	return user, nil
}

// Update merges patch into the current user, refreshing lastActive.
func (s *Service) Update(ctx context.Context, patch model.Patch) (model.User, error) {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, ErrNoCurrentUser
	}

	if patch.Name != nil && *patch.Name != "" {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Avatar != nil {
		user.Avatar = *patch.Avatar
	}
	if patch.Theme != nil {
		user.Preferences.Theme = *patch.Theme
	}
	if patch.Notifications != nil {
		user.Preferences.Notifications = *patch.Notifications
	}
	if patch.DataRetentionDays != nil {
		user.Preferences.DataRetentionDays = *patch.DataRetentionDays
	}
	user.Stats.LastActive = time.Now().UTC()

	if err := s.records.Put(ctx, store.CurrentUserKey(), user); err != nil {
		return model.User{}, fmt.Errorf("persist update: %w", err)
	}
	return user, nil
}

// IncrementMoodEntries bumps the mood counter after a new day is
// recorded for the first time.
func (s *Service) IncrementMoodEntries(ctx context.Context) error {
	return s.mutateStats(ctx, func(st *model.Stats) { st.MoodEntries++ })
}

// SetCheckinStreak stores the recomputed consecutive-day streak.
func (s *Service) SetCheckinStreak(ctx context.Context, streak int) error {
	return s.mutateStats(ctx, func(st *model.Stats) { st.CheckinStreak = streak })
}

func (s *Service) mutateStats(ctx context.Context, fn func(*model.Stats)) error {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCurrentUser
	}
	fn(&user.Stats)
	user.Stats.LastActive = time.Now().UTC()
	if err := s.records.Put(ctx, store.CurrentUserKey(), user); err != nil {
		return fmt.Errorf("persist stats: %w", err)
	}
	return nil
}

// Clear deletes the current-user pointer and every record scoped to
// that user. Irreversible.
func (s *Service) Clear(ctx context.Context) error {
	var user model.User
	ok, err := s.records.Get(ctx, store.CurrentUserKey(), &user)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCurrentUser
	}

	keys, err := s.records.ListKeys(ctx, store.AppPrefix())
	if err != nil {
		return fmt.Errorf("list user records: %w", err)
	}
	for _, key := range keys {
		if store.BelongsTo(key, user.ID) {
			if err := s.records.Delete(ctx, key); err != nil {
				return fmt.Errorf("cascade delete %s: %w", key, err)
			}
		}
	}
	return s.records.Delete(ctx, store.CurrentUserKey())
}
