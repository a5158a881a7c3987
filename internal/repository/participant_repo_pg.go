package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
)

type pgParticipantRepository struct {
	db *gorm.DB
}

func NewPGParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &pgParticipantRepository{db: db}
}

func (r *pgParticipantRepository) Add(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pgParticipantRepository) AddBulk(
	ctx context.Context, recruitmentID uuid.UUID, memberIDs []string, at time.Time,
) error {
	if len(memberIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(newParticipants(recruitmentID, memberIDs, at)).Error
}

func (r *pgParticipantRepository) Remove(ctx context.Context, recruitmentID uuid.UUID, memberID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Delete(&model.Participant{}, "recruitment_id = ? AND member_id = ?", recruitmentID, memberID)
	return res.RowsAffected > 0, res.Error
}

func (r *pgParticipantRepository) ListByRecruitment(
	ctx context.Context, recruitmentID uuid.UUID,
) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.WithContext(ctx).
		Where("recruitment_id = ?", recruitmentID).
		Order("joined_at, member_id").
		Find(&participants).Error
	return participants, err
}

func newParticipants(recruitmentID uuid.UUID, memberIDs []string, at time.Time) []model.Participant {
	rows := make([]model.Participant, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, model.Participant{RecruitmentID: recruitmentID, MemberID: id, JoinedAt: at})
	}
	return rows
}
