package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/unifeed-dev/unifeed/internal/config"
	"github.com/unifeed-dev/unifeed/internal/domain"
	"github.com/unifeed-dev/unifeed/internal/logger"
	"github.com/unifeed-dev/unifeed/internal/service"
)

// ProgressService answers publication progress queries.
type ProgressService interface {
	Query(ctx context.Context, ref domain.OwnerRef, requester domain.UserId) (*service.ProgressStatus, error)
}

// UploadService is the media pipeline's entry point.
type UploadService interface {
	Attach(ctx context.Context, ref domain.OwnerRef, requester domain.UserId, upload *service.PendingUpload) (*domain.MediaAttachment, error)
}

// OwnerCreator creates the owner records the handlers materialize inline.
type OwnerCreator interface {
	CreateFeaturedImage(ctx context.Context, createdBy domain.UserId) (int64, error)
}

// CohortService materializes cohort records on first reference.
type CohortService interface {
	GetOrCreate(ctx context.Context, courseId int64, year string) (*domain.Cohort, error)
}

// HealthChecker reports dependency readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	progress ProgressService
	upload   UploadService
	owners   OwnerCreator
	cohorts  CohortService
	health   HealthChecker
	cfg      *config.Config
}

func New(progress ProgressService, upload UploadService, owners OwnerCreator, cohorts CohortService, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{progress, upload, owners, cohorts, health, cfg}
}

// envelope is the response shape polling clients expect.
type envelope struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Errors  any    `json:"errors"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope{Data: data, Message: message, Errors: nil}); err != nil {
		logger.Log.Error(err.Error())
	}
}
