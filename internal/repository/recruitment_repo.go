package repository

import (
	"context"

	"github.com/google/uuid"

	"joinus/partyboard/internal/model"
)

// RecruitmentRepository stores recruitments. Lookups that match nothing
// return gorm.ErrRecordNotFound; unique violations return gorm.ErrDuplicatedKey.
type RecruitmentRepository interface {
	Create(ctx context.Context, rec *model.Recruitment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Recruitment, error)
	GetByMessageRef(ctx context.Context, ref string) (*model.Recruitment, error)
	GetOpenByCreator(ctx context.Context, guildID, creatorID string) (*model.Recruitment, error)
	// Update applies the set fields, stamps updated_at and returns the stored row.
	Update(ctx context.Context, id uuid.UUID, upd model.RecruitmentUpdate) (*model.Recruitment, error)
}
