package tracking

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	model "github.com/mindease/backend/internal/model/tracking"
	"github.com/mindease/backend/internal/service/profile"
	"github.com/mindease/backend/internal/store"
)

const (
	moodEntity    = "mood"
	checkinEntity = "checkin"
)

// Service owns the mood and check-in collections for a user.
type Service struct {
	records  store.RecordStore
	profiles *profile.Service
}

// NewService builds the tracking service.
func NewService(records store.RecordStore, profiles *profile.Service) *Service {
	return &Service{records: records, profiles: profiles}
}

// UpsertMood records the mood for one calendar day, replacing any
// existing entry for that day. The user's moodEntries counter grows
// only when the day is new, not on edits.
func (s *Service) UpsertMood(ctx context.Context, userID, date string, mood int, note string) error {
	if _, err := model.ParseDay(date); err != nil {
		return err
	}
	if err := model.ValidateMood(mood); err != nil {
		return err
	}

	key := store.EntityKey(moodEntity, userID)
	var entries []model.MoodEntry
	if _, err := s.records.Get(ctx, key, &entries); err != nil {
		return err
	}

	newDay := true
	kept := entries[:0]
	for _, e := range entries {
		if e.Date == date {
			newDay = false
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, model.MoodEntry{Date: date, Mood: mood, Note: note})
	sort.Slice(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })

	if err := s.records.Put(ctx, key, kept); err != nil {
		return fmt.Errorf("persist mood entries: %w", err)
	}
	if newDay {
		if err := s.profiles.IncrementMoodEntries(ctx); err != nil {
			return err
		}
	}
	s.pruneWithRetention(ctx, userID)
	return nil
}

// UpsertCheckin records one daily reflection, replacing any existing
// entry for that day, and recomputes the check-in streak.
func (s *Service) UpsertCheckin(ctx context.Context, userID string, entry model.CheckinEntry) error {
	if _, err := model.ParseDay(entry.Date); err != nil {
		return err
	}

	key := store.EntityKey(checkinEntity, userID)
	var entries []model.CheckinEntry
	if _, err := s.records.Get(ctx, key, &entries); err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.Date != entry.Date {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	sort.Slice(kept, func(i, j int) bool { return kept[i].Date > kept[j].Date })

	if err := s.records.Put(ctx, key, kept); err != nil {
		return fmt.Errorf("persist checkin entries: %w", err)
	}
	if err := s.profiles.SetCheckinStreak(ctx, streak(kept, model.Today())); err != nil {
		return err
	}
	s.pruneWithRetention(ctx, userID)
	return nil
}

// ListMood returns the stored mood history ascending by date. A
// positive limit truncates to the most recent N entries.
func (s *Service) ListMood(ctx context.Context, userID string, limit int) ([]model.MoodEntry, error) {
	var entries []model.MoodEntry
	if _, err := s.records.Get(ctx, store.EntityKey(moodEntity, userID), &entries); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// ListCheckins returns the stored check-in history descending by date.
// A positive limit truncates to the most recent N entries.
func (s *Service) ListCheckins(ctx context.Context, userID string, limit int) ([]model.CheckinEntry, error) {
	var entries []model.CheckinEntry
	if _, err := s.records.Get(ctx, store.EntityKey(checkinEntity, userID), &entries); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Prune deletes entries older than retentionDays before today for both
// collections. RetentionUnlimited disables pruning.
func (s *Service) Prune(ctx context.Context, userID string, retentionDays int) error {
	if retentionDays < 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format(model.DayKey)

	moodKey := store.EntityKey(moodEntity, userID)
	var moods []model.MoodEntry
	if _, err := s.records.Get(ctx, moodKey, &moods); err != nil {
		return err
	}
	keptMoods := moods[:0]
	for _, e := range moods {
		if e.Date >= cutoff {
			keptMoods = append(keptMoods, e)
		}
	}
	if len(keptMoods) != len(moods) {
		if err := s.records.Put(ctx, moodKey, keptMoods); err != nil {
			return fmt.Errorf("persist pruned moods: %w", err)
		}
	}

	checkinKey := store.EntityKey(checkinEntity, userID)
	var checkins []model.CheckinEntry
	if _, err := s.records.Get(ctx, checkinKey, &checkins); err != nil {
		return err
	}
	keptCheckins := checkins[:0]
	for _, e := range checkins {
		if e.Date >= cutoff {
			keptCheckins = append(keptCheckins, e)
		}
	}
	if len(keptCheckins) != len(checkins) {
		if err := s.records.Put(ctx, checkinKey, keptCheckins); err != nil {
			return fmt.Errorf("persist pruned checkins: %w", err)
		}
	}
	return nil
}

// pruneWithRetention applies the owner's retention preference after a
// write. Failures only log; the write itself already succeeded.
func (s *Service) pruneWithRetention(ctx context.Context, userID string) {
	user, ok, err := s.profiles.Peek(ctx)
	if err != nil || !ok {
		return
	}
	if err := s.Prune(ctx, userID, user.Preferences.DataRetentionDays); err != nil {
		log.Printf("[tracking] retention prune failed for user=%s: %v", userID, err)
	}
}

// streak counts consecutive check-in days ending at today, walking the
// descending history.
func streak(entries []model.CheckinEntry, today string) int {
	day, err := time.Parse(model.DayKey, today)
	if err != nil {
		return 0
	}
	count := 0
	expected := day
	for _, e := range entries {
		if e.Date != expected.Format(model.DayKey) {
			break
		}
		count++
		expected = expected.AddDate(0, 0, -1)
	}
	return count
}
