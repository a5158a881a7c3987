package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
)

type pgRecruitmentRepository struct {
	db *gorm.DB
}

func NewPGRecruitmentRepository(db *gorm.DB) RecruitmentRepository {
	return &pgRecruitmentRepository{db: db}
}

func (r *pgRecruitmentRepository) Create(ctx context.Context, rec *model.Recruitment) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *pgRecruitmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Recruitment, error) {
	var rec model.Recruitment
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *pgRecruitmentRepository) GetByMessageRef(ctx context.Context, ref string) (*model.Recruitment, error) {
	var rec model.Recruitment
	if err := r.db.WithContext(ctx).First(&rec, "message_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *pgRecruitmentRepository) GetOpenByCreator(
	ctx context.Context, guildID, creatorID string,
) (*model.Recruitment, error) {
	var rec model.Recruitment
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND creator_id = ? AND status = ?", guildID, creatorID, model.RecruitmentStatusOpen).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *pgRecruitmentRepository) Update(
	ctx context.Context, id uuid.UUID, upd model.RecruitmentUpdate,
) (*model.Recruitment, error) {
	var rec model.Recruitment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cols := upd.Columns(); len(cols) > 0 {
			res := tx.Model(&model.Recruitment{}).Where("id = ?", id).Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.First(&rec, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
