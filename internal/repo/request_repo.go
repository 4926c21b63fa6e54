package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// StatusLookup is one (table, column) pair the status resolver tries.
type StatusLookup struct {
	Table  string
	Column string
	Kind   string // request type reported to callers
}

// StatusLookups is the resolver contract: an id of unknown provenance is
// matched against these pairs in this exact order, and the first pair that
// matches a row wins.
var StatusLookups = []StatusLookup{
	{Table: "health_insurance_requests", Column: "id", Kind: "health_insurance"},
	{Table: "health_insurance_requests", Column: "session_id", Kind: "health_insurance"},
	{Table: "service_requests", Column: "id", Kind: "service_request"},
	{Table: "voluntary_return_forms", Column: "id", Kind: "voluntary_return"},
}

// UpdateRequestStatus sets status on the first row matched by StatusLookups,
// inside a single transaction. It returns the lookup that matched, or
// ok=false when none did. Only one row in one table is ever changed.
func UpdateRequestStatus(ctx context.Context, db *gorm.DB, id, status string) (match StatusLookup, ok bool, err error) {
	now := time.Now().UTC()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range StatusLookups {
			// LIMIT on UPDATE is not portable; select the primary key first.
			var pks []string
			if err := tx.Table(p.Table).Where(p.Column+" = ?", id).Limit(1).Pluck("id", &pks).Error; err != nil {
				return err
			}
			if len(pks) == 0 {
				continue
			}
			upd := tx.Table(p.Table).Where("id = ?", pks[0]).
				Updates(map[string]any{"status": status, "updated_at": now})
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected > 0 {
				match, ok = p, true
				return nil
			}
		}
		return nil
	})
	return match, ok, err
}

// RequestSummary is a read-only view of a request row used by the admin
// "view request" button.
type RequestSummary struct {
	Kind      string
	ID        string
	Status    string
	CreatedAt time.Time
}

// FindRequest looks id up with the same lookup order as UpdateRequestStatus.
func FindRequest(ctx context.Context, db *gorm.DB, id string) (*RequestSummary, error) {
	for _, p := range StatusLookups {
		var row struct {
			ID        string
			Status    string
			CreatedAt time.Time
		}
		res := db.WithContext(ctx).Table(p.Table).
			Select("id, status, created_at").
			Where(p.Column+" = ?", id).
			Limit(1).Scan(&row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			return &RequestSummary{Kind: p.Kind, ID: row.ID, Status: row.Status, CreatedAt: row.CreatedAt}, nil
		}
	}
	return nil, ErrNotFound
}

// CreateVoluntaryReturnForm inserts a petition row with a generated id and
// pending status.
func CreateVoluntaryReturnForm(ctx context.Context, db *gorm.DB, f *domain.VoluntaryReturnForm) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = domain.StatusPending
	}
	return db.WithContext(ctx).Create(f).Error
}
