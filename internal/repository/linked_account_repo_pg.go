package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"joinus/partyboard/internal/model"
)

type pgLinkedAccountRepository struct {
	db *gorm.DB
}

func NewPGLinkedAccountRepository(db *gorm.DB) LinkedAccountRepository {
	return &pgLinkedAccountRepository{db: db}
}

func (r *pgLinkedAccountRepository) Upsert(ctx context.Context, acct *model.LinkedAccount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"riot_puuid", "sealed_access_token", "sealed_refresh_token", "updated_at",
		}),
	}).Create(acct).Error
}

func (r *pgLinkedAccountRepository) Get(ctx context.Context, memberID string) (*model.LinkedAccount, error) {
	var acct model.LinkedAccount
	if err := r.db.WithContext(ctx).First(&acct, "member_id = ?", memberID).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *pgLinkedAccountRepository) ListLinked(ctx context.Context) ([]model.LinkedAccount, error) {
	var accounts []model.LinkedAccount
	err := r.db.WithContext(ctx).
		Where("riot_puuid <> ''").
		Order("member_id").
		Find(&accounts).Error
	return accounts, err
}

func (r *pgLinkedAccountRepository) UpdateRank(ctx context.Context, memberID, tier string, checkedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.LinkedAccount{}).
		Where("member_id = ?", memberID).
		Updates(map[string]interface{}{"rank_tier": tier, "rank_checked_at": checkedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
