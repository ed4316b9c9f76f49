package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// ReviewRepository handles the human-review queue
type ReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateReviewItem adds an item to the review queue
func (r *ReviewRepository) CreateReviewItem(ctx context.Context, item *entities.ReviewItem) error {
	if item == nil {
		return errors.New("review item cannot be nil")
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// ListOpenReviewItems retrieves unresolved review items, oldest first
func (r *ReviewRepository) ListOpenReviewItems(ctx context.Context, limit int) ([]entities.ReviewItem, error) {
	var items []entities.ReviewItem
	if limit == 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListReviewItemsByMeetingID retrieves all review items for a meeting
func (r *ReviewRepository) ListReviewItemsByMeetingID(ctx context.Context, meetingID string) ([]entities.ReviewItem, error) {
	var items []entities.ReviewItem
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ResolveReviewItem marks a review item as resolved
func (r *ReviewRepository) ResolveReviewItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entities.ReviewItem{}).
		Where("id = ?", itemID).
		Update("resolved", true).Error
}
