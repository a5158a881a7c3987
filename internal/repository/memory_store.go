package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/roster"
)

// MemoryStore keeps every table in process memory behind one mutex. It
// mirrors the postgres constraints: unique message refs, one open
// recruitment per (guild, creator), unique (recruitment, member).
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	recruitments map[uuid.UUID]model.Recruitment
	participants map[uuid.UUID][]model.Participant
	logs         []model.ActivityLog
	accounts     map[string]model.LinkedAccount
}

var (
	_ RecruitmentRepository   = (*MemoryStore)(nil)
	_ ParticipantRepository   = (*MemoryStore)(nil)
	_ ActivityLogRepository   = (*MemoryStore)(nil)
	_ RosterRepository        = (*MemoryStore)(nil)
	_ LinkedAccountRepository = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          time.Now,
		recruitments: make(map[uuid.UUID]model.Recruitment),
		participants: make(map[uuid.UUID][]model.Participant),
		accounts:     make(map[string]model.LinkedAccount),
	}
}

// Recruitments

func (s *MemoryStore) Create(_ context.Context, rec *model.Recruitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(rec)
}

func (s *MemoryStore) createLocked(rec *model.Recruitment) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, ok := s.recruitments[rec.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, other := range s.recruitments {
		if other.MessageRef == rec.MessageRef {
			return gorm.ErrDuplicatedKey
		}
		if rec.IsOpen() && other.IsOpen() && other.GuildID == rec.GuildID && other.CreatorID == rec.CreatorID {
			return gorm.ErrDuplicatedKey
		}
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = model.RecruitmentStatusOpen
	}
	s.recruitments[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recruitments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) GetByMessageRef(_ context.Context, ref string) (*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recruitments {
		if rec.MessageRef == ref {
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) GetOpenByCreator(_ context.Context, guildID, creatorID string) (*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recruitments {
		if rec.IsOpen() && rec.GuildID == guildID && rec.CreatorID == creatorID {
			return &rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, upd model.RecruitmentUpdate) (*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recruitments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if upd.MessageRef != nil {
		for otherID, other := range s.recruitments {
			if otherID != id && other.MessageRef == *upd.MessageRef {
				return nil, gorm.ErrDuplicatedKey
			}
		}
	}
	upd.Apply(&rec)
	rec.UpdatedAt = s.now()
	s.recruitments[id] = rec
	return &rec, nil
}

// Participants

func (s *MemoryStore) Add(_ context.Context, p *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(*p)
}

func (s *MemoryStore) addLocked(p model.Participant) error {
	for _, existing := range s.participants[p.RecruitmentID] {
		if existing.MemberID == p.MemberID {
			return gorm.ErrDuplicatedKey
		}
	}
	s.participants[p.RecruitmentID] = append(s.participants[p.RecruitmentID], p)
	return nil
}

func (s *MemoryStore) AddBulk(_ context.Context, recruitmentID uuid.UUID, memberIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addBulkLocked(recruitmentID, memberIDs, at)
}

func (s *MemoryStore) addBulkLocked(recruitmentID uuid.UUID, memberIDs []string, at time.Time) error {
	seen := make(map[string]struct{}, len(memberIDs))
	for _, p := range s.participants[recruitmentID] {
		seen[p.MemberID] = struct{}{}
	}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			return gorm.ErrDuplicatedKey
		}
		seen[id] = struct{}{}
	}
	s.participants[recruitmentID] = append(s.participants[recruitmentID], newParticipants(recruitmentID, memberIDs, at)...)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, recruitmentID uuid.UUID, memberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(recruitmentID, memberID), nil
}

func (s *MemoryStore) removeLocked(recruitmentID uuid.UUID, memberID string) bool {
	rows := s.participants[recruitmentID]
	for i, p := range rows {
		if p.MemberID == memberID {
			s.participants[recruitmentID] = append(rows[:i:i], rows[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListByRecruitment(_ context.Context, recruitmentID uuid.UUID) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]model.Participant(nil), s.participants[recruitmentID]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].JoinedAt.Before(rows[j].JoinedAt) })
	return rows, nil
}

// Activity log

func (s *MemoryStore) Append(_ context.Context, entry *model.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *MemoryStore) CountJoinsInPeriod(_ context.Context, memberID string, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.logs {
		if l.MemberID == memberID && l.Action == model.ActionJoin && within(l.CreatedAt, start, end) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountGuildRecruitmentsInPeriod(_ context.Context, guildID string, start, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.recruitments {
		if rec.GuildID == guildID && within(rec.CreatedAt, start, end) {
			n++
		}
	}
	return n, nil
}

// ActivityLogs returns a copy of every appended entry in append order.
func (s *MemoryStore) ActivityLogs() []model.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ActivityLog(nil), s.logs...)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Roster

func (s *MemoryStore) Seed(_ context.Context, rec *model.Recruitment, memberIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.createLocked(rec); err != nil {
		return err
	}
	if err := s.addBulkLocked(rec.ID, memberIDs, at); err != nil {
		delete(s.recruitments, rec.ID)
		return err
	}
	for _, id := range memberIDs {
		s.logs = append(s.logs, model.NewActivityLog(id, rec, model.ActionJoin, at))
	}
	return nil
}

func (s *MemoryStore) Join(_ context.Context, recruitmentID uuid.UUID, memberID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recruitments[recruitmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if err := roster.CheckJoin(&rec, model.MemberIDs(s.participants[recruitmentID]), memberID); err != nil {
		return err
	}
	if err := s.addLocked(model.Participant{RecruitmentID: recruitmentID, MemberID: memberID, JoinedAt: at}); err != nil {
		return err
	}
	s.logs = append(s.logs, model.NewActivityLog(memberID, &rec, model.ActionJoin, at))
	return nil
}

func (s *MemoryStore) Leave(_ context.Context, recruitmentID uuid.UUID, memberID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recruitments[recruitmentID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if err := roster.CheckLeave(&rec); err != nil {
		return false, err
	}
	if !s.removeLocked(recruitmentID, memberID) {
		return false, nil
	}
	s.logs = append(s.logs, model.NewActivityLog(memberID, &rec, model.ActionLeave, at))
	return true, nil
}

// Linked accounts

func (s *MemoryStore) Upsert(_ context.Context, acct *model.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored, ok := s.accounts[acct.MemberID]
	if !ok {
		stored = *acct
		stored.CreatedAt = now
	} else {
		stored.RiotPUUID = acct.RiotPUUID
		stored.SealedAccessToken = acct.SealedAccessToken
		stored.SealedRefreshToken = acct.SealedRefreshToken
	}
	stored.UpdatedAt = now
	s.accounts[acct.MemberID] = stored
	return nil
}

func (s *MemoryStore) Get(_ context.Context, memberID string) (*model.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[memberID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &acct, nil
}

func (s *MemoryStore) ListLinked(_ context.Context) ([]model.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LinkedAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		if acct.RiotPUUID != "" {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *MemoryStore) UpdateRank(_ context.Context, memberID, tier string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[memberID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	acct.RankTier = tier
	acct.RankCheckedAt = &checkedAt
	acct.UpdatedAt = s.now()
	s.accounts[memberID] = acct
	return nil
}
