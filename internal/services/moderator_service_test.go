package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

func newModeratorFixture(t *testing.T) *ModeratorService {
	t.Helper()
	svc := NewModeratorService(newTestDB(t))
	for _, p := range []domain.Profile{
		{ID: "u-admin", Email: "admin@x.com", Role: domain.RoleAdmin},
		{ID: "u-mod", Email: "mod@x.com", Role: domain.RoleModerator},
		{ID: "u-user", Email: "user@x.com", Role: domain.RoleUser},
	} {
		p := p
		if err := svc.DB.Create(&p).Error; err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	return svc
}

func activeModerators(t *testing.T, svc *ModeratorService) map[string]bool {
	t.Helper()
	mods, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := map[string]bool{}
	for _, m := range mods {
		out[m.UserID] = m.IsActive
	}
	return out
}

func TestModeratorService_PromoteDemote(t *testing.T) {
	svc := newModeratorFixture(t)
	ctx := context.Background()

	p, err := svc.Promote(ctx, "user@x.com")
	if err != nil || p.Role != domain.RoleModerator {
		t.Fatalf("Promote = %+v, %v", p, err)
	}
	if ok, _ := svc.IsStaff(ctx, "u-user"); !ok {
		t.Fatalf("promoted user is not staff")
	}
	if !activeModerators(t, svc)["u-user"] {
		t.Fatalf("projection not written")
	}

	p, err = svc.Demote(ctx, "user@x.com")
	if err != nil || p.Role != domain.RoleUser {
		t.Fatalf("Demote = %+v, %v", p, err)
	}
	if ok, _ := svc.IsStaff(ctx, "u-user"); ok {
		t.Fatalf("demoted user is still staff")
	}
	if active, ok := activeModerators(t, svc)["u-user"]; !ok || active {
		t.Fatalf("projection row = %v/%v; want inactive", active, ok)
	}
}

func TestModeratorService_AdminRules(t *testing.T) {
	svc := newModeratorFixture(t)
	ctx := context.Background()

	p, err := svc.Promote(ctx, "admin@x.com")
	if err != nil || p.Role != domain.RoleAdmin {
		t.Fatalf("Promote(admin) = %+v, %v; want role kept", p, err)
	}
	if _, err := svc.Demote(ctx, "admin@x.com"); !errors.Is(err, ErrCannotDemoteAdmin) {
		t.Fatalf("err = %v; want ErrCannotDemoteAdmin", err)
	}
	prof, _ := repo.GetProfile(ctx, svc.DB, "u-admin")
	if prof.Role != domain.RoleAdmin {
		t.Fatalf("admin role changed to %s", prof.Role)
	}
}

func TestModeratorService_UnknownUser(t *testing.T) {
	svc := newModeratorFixture(t)
	ctx := context.Background()
	if _, err := svc.Promote(ctx, "ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Promote err = %v", err)
	}
	if _, err := svc.Demote(ctx, "ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Demote err = %v", err)
	}
	if ok, err := svc.IsStaff(ctx, "nobody"); ok || err != nil {
		t.Fatalf("IsStaff(nobody) = %v, %v", ok, err)
	}
}

func TestModeratorService_Sync(t *testing.T) {
	svc := newModeratorFixture(t)
	ctx := context.Background()

	// A stale projection row for a user who is no longer staff.
	if err := repo.UpsertModerator(ctx, svc.DB, domain.Profile{ID: "u-user", Email: "user@x.com"}, true); err != nil {
		t.Fatalf("seed moderator: %v", err)
	}

	res, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Active != 2 || res.Deactivated != 1 {
		t.Fatalf("Sync = %+v; want 2 active, 1 deactivated", res)
	}
	mods := activeModerators(t, svc)
	if !mods["u-admin"] || !mods["u-mod"] || mods["u-user"] {
		t.Fatalf("projection = %v", mods)
	}
}
