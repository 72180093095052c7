package store

import (
	"context"

	"github.com/joescharf/crit/internal/models"
)

// Store defines the persistence interface for crit. The pipeline core
// never reads from it; it only produces results that the cmd layer
// persists here.
type Store interface {
	// Review sessions
	CreateReviewSession(ctx context.Context, s *models.ReviewSession) error
	GetReviewSession(ctx context.Context, id string) (*models.ReviewSession, error)
	ListReviewSessions(ctx context.Context, limit int) ([]*models.ReviewSession, error)
	UpdateReviewSession(ctx context.Context, s *models.ReviewSession) error

	// File reviews
	CreateFileReview(ctx context.Context, r *models.FileReview) error
	ListFileReviews(ctx context.Context, sessionID string) ([]*models.FileReview, error)

	// Approval decisions (append-only per file)
	CreateApprovalDecision(ctx context.Context, d *models.ApprovalDecision) error
	ListApprovalDecisions(ctx context.Context, fileID string) ([]*models.ApprovalDecision, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
