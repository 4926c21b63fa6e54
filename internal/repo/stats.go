package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// ChatMessagesStats returns aggregate metadata for the messages of a support
// session: the total number of rows and the greatest UpdatedAt among them.
// The HTTP layer derives a weak ETag from the pair.
//
// When the session has no messages, the returned count is 0 and
// maxUpdatedAt is nil.
func ChatMessagesStats(ctx context.Context, db *gorm.DB, sessionID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatMessage{}).Where("session_id = ?", sessionID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+Limit instead of MAX(): SQLite returns MAX() of a datetime as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
