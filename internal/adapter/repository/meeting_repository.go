package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// MeetingRepository handles meeting data operations
type MeetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// CreateMeeting stores a newly ingested meeting
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	return r.db.WithContext(ctx).Create(meeting).Error
}

// GetMeetingByID retrieves a meeting by ID
func (r *MeetingRepository) GetMeetingByID(ctx context.Context, meetingID string) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := r.db.WithContext(ctx).Where("id = ?", meetingID).First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// ListMeetingsInRange retrieves meetings whose timestamp falls in [from, to], chronological
func (r *MeetingRepository) ListMeetingsInRange(ctx context.Context, from, to time.Time) ([]entities.Meeting, error) {
	var meetings []entities.Meeting
	if err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Order("timestamp ASC").
		Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// UpdateMeetingStatus updates the processing status of a meeting
func (r *MeetingRepository) UpdateMeetingStatus(ctx context.Context, meetingID string, status entities.MeetingStatus) error {
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", meetingID).
		Update("status", status).Error
}

// SetArchiveObject records the object-storage key of the archived transcript
func (r *MeetingRepository) SetArchiveObject(ctx context.Context, meetingID, objectKey string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", meetingID).
		Update("archive_object", objectKey).Error
}
