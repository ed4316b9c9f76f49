package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// FactRepository handles candidate fact data operations
type FactRepository struct {
	db *gorm.DB
}

// NewFactRepository creates a new fact repository
func NewFactRepository(db *gorm.DB) *FactRepository {
	return &FactRepository{db: db}
}

// CreateFact stores a candidate fact. Returns (false, nil) when a fact with
// the same dedup key already exists; the duplicate is not an error.
func (r *FactRepository) CreateFact(ctx context.Context, fact *entities.Fact) (bool, error) {
	if fact == nil {
		return false, errors.New("fact cannot be nil")
	}
	err := r.db.WithContext(ctx).Create(fact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetFactByDedupKey retrieves a fact by its dedup key
func (r *FactRepository) GetFactByDedupKey(ctx context.Context, dedupKey string) (*entities.Fact, error) {
	var fact entities.Fact
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", dedupKey).First(&fact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fact, nil
}

// ListFactsByTicketKey retrieves facts targeting a specific ticket
func (r *FactRepository) ListFactsByTicketKey(ctx context.Context, ticketKey string) ([]entities.Fact, error) {
	var facts []entities.Fact
	if err := r.db.WithContext(ctx).
		Where("ticket_key = ?", ticketKey).
		Order("created_at ASC").
		Find(&facts).Error; err != nil {
		return nil, err
	}
	return facts, nil
}

// UpdateFactStatus updates the status of a fact
func (r *FactRepository) UpdateFactStatus(ctx context.Context, factID uuid.UUID, status entities.FactStatus) error {
	return r.db.WithContext(ctx).
		Model(&entities.Fact{}).
		Where("id = ?", factID).
		Update("status", status).Error
}

// SetTicketKey records the resolved target ticket on a fact
func (r *FactRepository) SetTicketKey(ctx context.Context, factID uuid.UUID, ticketKey string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Fact{}).
		Where("id = ?", factID).
		Update("ticket_key", ticketKey).Error
}
