package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

func seedRequests(t *testing.T, svc *StatusService) {
	t.Helper()
	rows := []any{
		&domain.HealthInsuranceRequest{ID: "hi-1", SessionID: "sess-1", Status: domain.StatusPending},
		&domain.ServiceRequest{ID: "sr-1", Status: domain.StatusPending},
		&domain.VoluntaryReturnForm{ID: "vr-1", FullNameTR: "Ali", FullNameAR: "علي", KimlikNo: "12345678901", SinirKapisi: "Cilvegözü", Source: "web", Status: domain.StatusPending},
		// An id colliding with a health insurance session id.
		&domain.ServiceRequest{ID: "sess-2", Status: domain.StatusPending},
		&domain.HealthInsuranceRequest{ID: "hi-2", SessionID: "sess-2", Status: domain.StatusPending},
	}
	for _, r := range rows {
		if err := svc.DB.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

func statusOf(t *testing.T, svc *StatusService, table, id string) string {
	t.Helper()
	var s []string
	if err := svc.DB.Table(table).Where("id = ?", id).Pluck("status", &s).Error; err != nil || len(s) != 1 {
		t.Fatalf("read %s: %v %v", table, s, err)
	}
	return s[0]
}

func TestStatusService_UpdateStatus(t *testing.T) {
	svc := &StatusService{DB: newTestDB(t)}
	seedRequests(t, svc)
	ctx := context.Background()

	tests := []struct {
		name  string
		id    string
		table string
		row   string
	}{
		{"health by id", "hi-1", "health_insurance_requests", "hi-1"},
		{"health by session id", "sess-1", "health_insurance_requests", "hi-1"},
		{"service request", "sr-1", "service_requests", "sr-1"},
		{"voluntary return", "vr-1", "voluntary_return_forms", "vr-1"},
		{"session id wins over later tables", "sess-2", "health_insurance_requests", "hi-2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := svc.UpdateStatus(ctx, tc.id, domain.StatusInProgress)
			if err != nil || !ok {
				t.Fatalf("UpdateStatus = %v, %v", ok, err)
			}
			if got := statusOf(t, svc, tc.table, tc.row); got != domain.StatusInProgress {
				t.Fatalf("status = %q", got)
			}
		})
	}

	if got := statusOf(t, svc, "service_requests", "sess-2"); got != domain.StatusPending {
		t.Fatalf("colliding service request was changed: %q", got)
	}
}

func TestStatusService_UpdateStatus_NoMatchAndValidation(t *testing.T) {
	svc := &StatusService{DB: newTestDB(t)}
	ctx := context.Background()

	ok, err := svc.UpdateStatus(ctx, "nope", domain.StatusResolved)
	if err != nil || ok {
		t.Fatalf("UpdateStatus(nope) = %v, %v; want false, nil", ok, err)
	}
	if _, err := svc.UpdateStatus(ctx, "  ", domain.StatusResolved); !errors.Is(err, ErrMissingID) {
		t.Fatalf("err = %v; want ErrMissingID", err)
	}
	if _, err := svc.UpdateStatus(ctx, "x", "done"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v; want ErrInvalidStatus", err)
	}
}

func TestStatusService_Find(t *testing.T) {
	svc := &StatusService{DB: newTestDB(t)}
	seedRequests(t, svc)
	ctx := context.Background()

	sum, err := svc.Find(ctx, "vr-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if sum.Kind != "voluntary_return" || sum.Status != domain.StatusPending {
		t.Fatalf("summary = %+v", sum)
	}
	if _, err := svc.Find(ctx, "missing"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v; want ErrRequestNotFound", err)
	}
	if _, err := svc.Find(ctx, ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("err = %v; want ErrMissingID", err)
	}
}
