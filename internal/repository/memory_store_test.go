package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/roster"
)

var t0 = time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)

func member(n int) string { return fmt.Sprintf("3000000000000%05d", n) }

func seedRecruitment(t *testing.T, s *MemoryStore, max int, members ...string) *model.Recruitment {
	t.Helper()
	rec := &model.Recruitment{
		ID:              uuid.New(),
		MessageRef:      "pending:" + uuid.NewString(),
		GuildID:         "100000000000000001",
		CreatorID:       members[0],
		PartyType:       "ranked",
		MaxParticipants: max,
		Status:          model.RecruitmentStatusOpen,
		Deadline:        t0.Add(time.Hour),
		CreatedAt:       t0,
	}
	if err := s.Seed(context.Background(), rec, members, t0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func TestMemoryStoreSeedLogsOnePerMember(t *testing.T) {
	s := NewMemoryStore()
	rec := seedRecruitment(t, s, 5, member(1), member(2), member(3))

	rows, _ := s.ListByRecruitment(context.Background(), rec.ID)
	if len(rows) != 3 {
		t.Fatalf("participants = %d, want 3", len(rows))
	}
	logs := s.ActivityLogs()
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(logs))
	}
	for _, l := range logs {
		if l.Action != model.ActionJoin || l.GuildID != rec.GuildID {
			t.Fatalf("unexpected log %+v", l)
		}
	}
}

func TestMemoryStoreOneOpenPerCreator(t *testing.T) {
	s := NewMemoryStore()
	first := seedRecruitment(t, s, 2, member(1))

	dup := *first
	dup.ID = uuid.New()
	dup.MessageRef = "pending:other"
	if err := s.Seed(context.Background(), &dup, []string{member(1)}, t0); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("second open seed = %v, want ErrDuplicatedKey", err)
	}
	if _, err := s.GetByID(context.Background(), dup.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatal("rejected recruitment was stored")
	}

	cancelled := model.RecruitmentStatusCancelled
	if _, err := s.Update(context.Background(), first.ID, model.RecruitmentUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.Seed(context.Background(), &dup, []string{member(1)}, t0); err != nil {
		t.Fatalf("seed after cancel: %v", err)
	}
}

func TestMemoryStoreJoinRules(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := seedRecruitment(t, s, 2, member(1))

	if err := s.Join(ctx, rec.ID, member(1), t0); !errors.Is(err, roster.ErrAlreadyJoined) {
		t.Fatalf("duplicate join = %v", err)
	}
	if err := s.Join(ctx, rec.ID, member(2), t0); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join(ctx, rec.ID, member(3), t0); !errors.Is(err, roster.ErrFull) {
		t.Fatalf("join when full = %v", err)
	}
	if err := s.Join(ctx, uuid.New(), member(3), t0); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("join unknown = %v", err)
	}
	if got := len(s.ActivityLogs()); got != 2 {
		t.Fatalf("logs = %d, want 2 (seed + one join)", got)
	}
}

func TestMemoryStoreLeave(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := seedRecruitment(t, s, 3, member(1), member(2))

	removed, err := s.Leave(ctx, rec.ID, member(9), t0)
	if err != nil || removed {
		t.Fatalf("non-member leave = %v, %v", removed, err)
	}
	if got := len(s.ActivityLogs()); got != 2 {
		t.Fatalf("non-member leave wrote a log: %d", got)
	}

	removed, err = s.Leave(ctx, rec.ID, member(2), t0)
	if err != nil || !removed {
		t.Fatalf("leave = %v, %v", removed, err)
	}
	logs := s.ActivityLogs()
	if last := logs[len(logs)-1]; last.Action != model.ActionLeave || last.MemberID != member(2) {
		t.Fatalf("last log = %+v", last)
	}

	cancelled := model.RecruitmentStatusCancelled
	_, _ = s.Update(ctx, rec.ID, model.RecruitmentUpdate{Status: &cancelled})
	if _, err := s.Leave(ctx, rec.ID, member(1), t0); !errors.Is(err, roster.ErrClosed) {
		t.Fatalf("leave cancelled = %v", err)
	}
}

func TestMemoryStoreConcurrentJoinsNeverOverfill(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := seedRecruitment(t, s, 4, member(1))

	var wg sync.WaitGroup
	for i := 2; i < 40; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.Join(ctx, rec.ID, id, t0)
		}(member(i))
	}
	wg.Wait()

	rows, _ := s.ListByRecruitment(ctx, rec.ID)
	if len(rows) != 4 {
		t.Fatalf("roster = %d, want 4", len(rows))
	}
	if got := len(s.ActivityLogs()); got != 4 {
		t.Fatalf("logs = %d, want 4", got)
	}
}

func TestMemoryStoreCountsAreInclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := seedRecruitment(t, s, 5, member(1))
	_ = s.Join(ctx, rec.ID, member(2), t0.Add(time.Hour))
	_, _ = s.Leave(ctx, rec.ID, member(2), t0.Add(2*time.Hour))
	_ = s.Join(ctx, rec.ID, member(2), t0.Add(3*time.Hour))

	n, _ := s.CountJoinsInPeriod(ctx, member(2), t0.Add(time.Hour), t0.Add(3*time.Hour))
	if n != 2 {
		t.Fatalf("joins = %d, want 2", n)
	}
	n, _ = s.CountJoinsInPeriod(ctx, member(2), t0.Add(90*time.Minute), t0.Add(3*time.Hour))
	if n != 1 {
		t.Fatalf("joins in narrowed window = %d, want 1", n)
	}

	n, _ = s.CountGuildRecruitmentsInPeriod(ctx, rec.GuildID, t0, t0)
	if n != 1 {
		t.Fatalf("recruitments = %d, want 1", n)
	}
	n, _ = s.CountGuildRecruitmentsInPeriod(ctx, rec.GuildID, t0.Add(time.Second), t0.Add(time.Hour))
	if n != 0 {
		t.Fatalf("recruitments outside window = %d, want 0", n)
	}
}

func TestMemoryStoreLinkedAccounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Upsert(ctx, &model.LinkedAccount{MemberID: member(2), RiotPUUID: "p2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = s.Upsert(ctx, &model.LinkedAccount{MemberID: member(1), RiotPUUID: "p1"})
	if err := s.UpdateRank(ctx, member(1), "Gold", t0); err != nil {
		t.Fatalf("update rank: %v", err)
	}
	_ = s.Upsert(ctx, &model.LinkedAccount{MemberID: member(1), RiotPUUID: "p1-new", SealedAccessToken: "sealed"})

	acct, err := s.Get(ctx, member(1))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.RiotPUUID != "p1-new" || acct.RankTier != "Gold" || acct.SealedAccessToken != "sealed" {
		t.Fatalf("account = %+v", acct)
	}

	linked, _ := s.ListLinked(ctx)
	if len(linked) != 2 || linked[0].MemberID != member(1) {
		t.Fatalf("linked = %+v", linked)
	}
	if err := s.UpdateRank(ctx, member(9), "Iron", t0); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("update unknown = %v", err)
	}
}
