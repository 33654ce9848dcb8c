package audit

import (
	"context"
	"encoding/json"

	"edustack-web/internal/application/gate"
	"edustack-web/internal/application/session"
	"edustack-web/internal/domain"
	"edustack-web/internal/pkg/constants"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Recorder keeps a trail of redirecting gate decisions.
type Recorder interface {
	Record(ctx context.Context, sessionID, path string, d gate.Decision, snap session.Snapshot, required []constants.Role) error
}

// Nop discards every event. Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, string, string, gate.Decision, session.Snapshot, []constants.Role) error {
	return nil
}

// GormRecorder writes AccessEvents through GORM.
type GormRecorder struct {
	DB *gorm.DB
}

// Record inserts one AccessEvent.
func (r *GormRecorder) Record(ctx context.Context, sessionID, path string, d gate.Decision, snap session.Snapshot, required []constants.Role) error {
	roles, err := json.Marshal(constants.RoleStrings(required))
	if err != nil {
		return err
	}
	ev := domain.AccessEvent{
		SessionID:     sessionID,
		Path:          path,
		Decision:      d.String(),
		RequiredRoles: datatypes.JSON(roles),
	}
	if snap.User != nil {
		uid := snap.User.ID
		ev.UserID = &uid
	}
	if snap.SelectedSchoolID != "" {
		sid := snap.SelectedSchoolID
		ev.SchoolID = &sid
	}
	return r.DB.WithContext(ctx).Create(&ev).Error
}

// Recent returns the newest events first. userID filters when non-empty.
func (r *GormRecorder) Recent(ctx context.Context, userID string, limit int) ([]domain.AccessEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = DefaultLimit
	}
	q := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []domain.AccessEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
