package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// GetProfileByEmail looks a profile up by case-insensitive email.
func GetProfileByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns the profile with id.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProfileRole changes the role of profile id.
func SetProfileRole(ctx context.Context, db *gorm.DB, id, role string) error {
	res := db.WithContext(ctx).Model(&domain.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaffProfiles returns profiles with the moderator or admin role.
func ListStaffProfiles(ctx context.Context, db *gorm.DB) ([]domain.Profile, error) {
	var out []domain.Profile
	err := db.WithContext(ctx).
		Where("role IN ?", []string{domain.RoleModerator, domain.RoleAdmin}).
		Order("email ASC").
		Find(&out).Error
	return out, err
}

// UpsertModerator writes the projection row for profile p.
func UpsertModerator(ctx context.Context, db *gorm.DB, p domain.Profile, active bool) error {
	now := time.Now().UTC()
	m := &domain.Moderator{
		ID:        uuid.NewString(),
		UserID:    p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "is_active", "updated_at"}),
	}).Create(m).Error
}

// DeactivateModeratorsExcept marks every moderator row whose user is not in
// keep as inactive and returns how many rows changed.
func DeactivateModeratorsExcept(ctx context.Context, db *gorm.DB, keep []string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Moderator{}).Where("is_active = ?", true)
	if len(keep) > 0 {
		q = q.Where("user_id NOT IN ?", keep)
	}
	res := q.Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// ListModerators returns the projection, active rows first.
func ListModerators(ctx context.Context, db *gorm.DB) ([]domain.Moderator, error) {
	var out []domain.Moderator
	err := db.WithContext(ctx).Order("is_active DESC, email ASC").Find(&out).Error
	return out, err
}
