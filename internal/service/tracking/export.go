package tracking

import (
	"context"
	"encoding/json"
	"time"

	profilemodel "github.com/mindease/backend/internal/model/profile"
	"github.com/mindease/backend/internal/service/profile"
	"github.com/mindease/backend/internal/store"
)

// ExportBundle is the single JSON document offered for download. The
// tracking collections are embedded verbatim as stored.
type ExportBundle struct {
	Profile     profilemodel.User `json:"profile"`
	MoodData    json.RawMessage   `json:"moodData"`
	CheckinData json.RawMessage   `json:"checkinData"`
	ExportDate  time.Time         `json:"exportDate"`
}

// Export bundles the current user plus all tracking records. Read-only.
func (s *Service) Export(ctx context.Context) (ExportBundle, error) {
	user, ok, err := s.profiles.Peek(ctx)
	if err != nil {
		return ExportBundle{}, err
	}
	if !ok {
		return ExportBundle{}, profile.ErrNoCurrentUser
	}

	bundle := ExportBundle{
		Profile:     user,
		MoodData:    json.RawMessage("null"),
		CheckinData: json.RawMessage("null"),
		ExportDate:  time.Now().UTC(),
	}
	if raw, ok, err := s.records.GetRaw(ctx, store.EntityKey(moodEntity, user.ID)); err != nil {
		return ExportBundle{}, err
	} else if ok {
		bundle.MoodData = json.RawMessage(raw)
	}
	if raw, ok, err := s.records.GetRaw(ctx, store.EntityKey(checkinEntity, user.ID)); err != nil {
		return ExportBundle{}, err
	} else if ok {
		bundle.CheckinData = json.RawMessage(raw)
	}
	return bundle, nil
}
