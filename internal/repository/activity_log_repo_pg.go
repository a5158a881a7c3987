package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
)

type pgActivityLogRepository struct {
	db *gorm.DB
}

func NewPGActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &pgActivityLogRepository{db: db}
}

func (r *pgActivityLogRepository) Append(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pgActivityLogRepository) CountJoinsInPeriod(
	ctx context.Context, memberID string, start, end time.Time,
) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ActivityLog{}).
		Where("member_id = ? AND action = ? AND created_at BETWEEN ? AND ?", memberID, model.ActionJoin, start, end).
		Count(&n).Error
	return n, err
}

func (r *pgActivityLogRepository) CountGuildRecruitmentsInPeriod(
	ctx context.Context, guildID string, start, end time.Time,
) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Recruitment{}).
		Where("guild_id = ? AND created_at BETWEEN ? AND ?", guildID, start, end).
		Count(&n).Error
	return n, err
}
