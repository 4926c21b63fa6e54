package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

// StatusService updates and looks up request rows whose table is not known
// to the caller. The lookup order lives in repo.StatusLookups.
type StatusService struct {
	DB *gorm.DB
}

// UpdateStatus sets status on the first request row matching id and
// reports whether one did. It returns false, nil when no lookup matched.
func (s *StatusService) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	ctx, span := otel.Tracer("services/StatusService").Start(ctx, "UpdateStatus",
		trace.WithAttributes(attribute.String("request.status", status)),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrMissingID
	}
	if !domain.ValidRequestStatus(status) {
		return false, ErrInvalidStatus
	}
	match, ok, err := repo.UpdateRequestStatus(ctx, s.DB, id, status)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if ok {
		span.SetAttributes(attribute.String("request.kind", match.Kind))
	}
	return ok, nil
}

// Find returns the summary of the request matching id.
func (s *StatusService) Find(ctx context.Context, id string) (*repo.RequestSummary, error) {
	ctx, span := otel.Tracer("services/StatusService").Start(ctx, "Find")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingID
	}
	sum, err := repo.FindRequest(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return sum, err
}
