package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

// SyncResult reports what Sync changed.
type SyncResult struct {
	Active      int   `json:"active"`
	Deactivated int64 `json:"deactivated"`
}

// ModeratorService administers staff roles. profiles.role is the only
// source of truth; the moderators table is a projection of it that is
// written in the same transaction as every role change.
type ModeratorService struct {
	DB *gorm.DB

	log zerolog.Logger
}

// NewModeratorService wires a ModeratorService.
func NewModeratorService(db *gorm.DB) *ModeratorService {
	return &ModeratorService{DB: db, log: log.With().Str("component", "moderators").Logger()}
}

// Promote gives the profile with email the moderator role. Admins keep
// their role and only get their projection row refreshed.
func (s *ModeratorService) Promote(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := otel.Tracer("services/ModeratorService").Start(ctx, "Promote")
	defer span.End()

	var out *domain.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profile(ctx, tx, email)
		if err != nil {
			return err
		}
		if p.Role != domain.RoleAdmin {
			if err := repo.SetProfileRole(ctx, tx, p.ID, domain.RoleModerator); err != nil {
				return err
			}
			p.Role = domain.RoleModerator
		}
		if err := repo.UpsertModerator(ctx, tx, *p, true); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", out.ID).Str("role", out.Role).Msg("moderator promoted")
	return out, nil
}

// Demote returns a moderator to the user role and deactivates its
// projection row. Admins cannot be demoted through this path.
func (s *ModeratorService) Demote(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := otel.Tracer("services/ModeratorService").Start(ctx, "Demote")
	defer span.End()

	var out *domain.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.profile(ctx, tx, email)
		if err != nil {
			return err
		}
		if p.Role == domain.RoleAdmin {
			return ErrCannotDemoteAdmin
		}
		if err := repo.SetProfileRole(ctx, tx, p.ID, domain.RoleUser); err != nil {
			return err
		}
		p.Role = domain.RoleUser
		if err := repo.UpsertModerator(ctx, tx, *p, false); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", out.ID).Msg("moderator demoted")
	return out, nil
}

// Sync rebuilds the projection: every staff profile gets an active row and
// every other row is deactivated.
func (s *ModeratorService) Sync(ctx context.Context) (SyncResult, error) {
	ctx, span := otel.Tracer("services/ModeratorService").Start(ctx, "Sync")
	defer span.End()

	var res SyncResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff, err := repo.ListStaffProfiles(ctx, tx)
		if err != nil {
			return err
		}
		keep := make([]string, 0, len(staff))
		for _, p := range staff {
			if err := repo.UpsertModerator(ctx, tx, p, true); err != nil {
				return fmt.Errorf("upsert moderator %s: %w", p.ID, err)
			}
			keep = append(keep, p.ID)
		}
		n, err := repo.DeactivateModeratorsExcept(ctx, tx, keep)
		if err != nil {
			return err
		}
		res = SyncResult{Active: len(staff), Deactivated: n}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	s.log.Info().Int("active", res.Active).Int64("deactivated", res.Deactivated).Msg("moderators synced")
	return res, nil
}

// IsStaff reports whether userID has a staff role. It reads profiles only.
func (s *ModeratorService) IsStaff(ctx context.Context, userID string) (bool, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsStaff(), nil
}

// List returns the moderator projection.
func (s *ModeratorService) List(ctx context.Context) ([]domain.Moderator, error) {
	return repo.ListModerators(ctx, s.DB)
}

func (s *ModeratorService) profile(ctx context.Context, tx *gorm.DB, email string) (*domain.Profile, error) {
	p, err := repo.GetProfileByEmail(ctx, tx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return p, err
}
