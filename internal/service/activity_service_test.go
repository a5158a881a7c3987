package service

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/repository"
)

var scoringNow = time.Date(2025, 7, 31, 4, 0, 0, 0, time.UTC)

func testActivityConfig() config.ActivityConfig {
	return config.ActivityConfig{
		Window:          30 * 24 * time.Hour,
		TopN:            5,
		GhostThreshold:  0.9,
		RegularRoleName: "Regular Member",
		GhostRoleName:   "Ghost Member",
		Workers:         4,
	}
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestSelectRegulars(t *testing.T) {
	counts := []MemberCount{
		{"a", 10}, {"b", 15}, {"c", 1}, {"d", 8}, {"e", 7}, {"f", 6},
	}
	got := SelectRegulars(counts, 5)
	if want := []string{"b", "a", "d", "e", "f"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("regulars = %v, want %v", got, want)
	}
}

func TestSelectRegularsEdges(t *testing.T) {
	tests := []struct {
		name   string
		counts []MemberCount
		want   []string
	}{
		{"fewer than five qualify", []MemberCount{{"a", 2}, {"b", 0}, {"c", 1}}, []string{"a", "c"}},
		{"nobody joined", []MemberCount{{"a", 0}, {"b", 0}}, []string{}},
		{
			"tie at the cut goes to lower id",
			[]MemberCount{{"f", 3}, {"e", 3}, {"d", 3}, {"c", 3}, {"b", 3}, {"a", 3}},
			[]string{"a", "b", "c", "d", "e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectRegulars(tt.counts, 5); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("regulars = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectGhosts(t *testing.T) {
	counts := []MemberCount{{"a", 0}, {"b", 5}, {"c", 8}}
	if got := SelectGhosts(counts, 10, 0.9); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("ghosts = %v, want [a]", got)
	}
	if got := SelectGhosts([]MemberCount{{"x", 1}}, 10, 0.9); got != nil {
		t.Fatalf("rate exactly at threshold should not be a ghost, got %v", got)
	}
	if got := SelectGhosts(counts, 0, 0.9); got != nil {
		t.Fatalf("zero recruitments = %v, want nil", got)
	}
}

// seedJoins appends n join entries for member inside the window.
func seedJoins(t *testing.T, store *repository.MemoryStore, memberID string, n int) {
	t.Helper()
	rec := &model.Recruitment{ID: uuid.New(), GuildID: testGuild}
	for i := 0; i < n; i++ {
		entry := model.NewActivityLog(memberID, rec, model.ActionJoin, scoringNow.Add(-time.Duration(i+1)*time.Hour))
		if err := store.Append(context.Background(), &entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func seedRecruitments(t *testing.T, store *repository.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &model.Recruitment{
			ID:              uuid.New(),
			MessageRef:      uuid.NewString(),
			GuildID:         testGuild,
			CreatorID:       uuid.NewString(),
			MaxParticipants: 1,
			Status:          model.RecruitmentStatusCancelled,
			CreatedAt:       scoringNow.Add(-time.Duration(i+1) * 24 * time.Hour),
		}
		if err := store.Create(context.Background(), rec); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
}

func TestRunScoringPass(t *testing.T) {
	store := repository.NewMemoryStore()
	regular := RoleRef{ID: "r-regular", Name: "Regular Member"}
	ghost := RoleRef{ID: "r-ghost", Name: "Ghost Member"}
	roles := newFakeRoles(regular, ghost)

	for id, n := range map[string]int{"a": 10, "b": 15, "c": 1, "d": 8, "e": 7, "f": 6} {
		seedJoins(t, store, id, n)
	}
	seedRecruitments(t, store, 20)

	// An old join outside the window must not count.
	old := model.NewActivityLog("g", &model.Recruitment{GuildID: testGuild}, model.ActionJoin, scoringNow.AddDate(0, -2, 0))
	_ = store.Append(context.Background(), &old)

	dir := &fakeDirectory{members: []GuildMember{
		{ID: "a"},
		{ID: "b", Roles: []RoleRef{regular}},
		{ID: "c", Roles: []RoleRef{regular}},
		{ID: "d"},
		{ID: "e"},
		{ID: "f", Roles: []RoleRef{ghost}},
		{ID: "g"},
		{ID: "bot", Bot: true},
	}}

	svc := NewActivityService(store, dir, roles, testActivityConfig(), zaptest.NewLogger(t))
	report, err := svc.RunScoringPass(context.Background(), testGuild, scoringNow)
	if err != nil {
		t.Fatalf("scoring pass: %v", err)
	}

	if report.MembersScored != 7 {
		t.Fatalf("members scored = %d, want 7 (bot excluded)", report.MembersScored)
	}
	if got := sorted(report.Regulars); !reflect.DeepEqual(got, []string{"a", "b", "d", "e", "f"}) {
		t.Fatalf("regulars = %v", got)
	}
	// Rates with 20 recruitments: c=0.95, g=1.0; everyone else is at or below 0.7.
	if got := sorted(report.Ghosts); !reflect.DeepEqual(got, []string{"c", "g"}) {
		t.Fatalf("ghosts = %v", got)
	}

	want := []roleCall{
		{"add", "a", "Regular Member"},
		{"add", "c", "Ghost Member"},
		{"remove", "c", "Regular Member"},
		{"add", "d", "Regular Member"},
		{"add", "e", "Regular Member"},
		{"add", "f", "Regular Member"},
		{"remove", "f", "Ghost Member"},
		{"add", "g", "Ghost Member"},
	}
	if got := roles.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("role calls =\n%v\nwant\n%v", got, want)
	}
	if report.RolesAdded != 6 || report.RolesRemoved != 2 || report.FailedMembers != 0 {
		t.Fatalf("report = %+v", report)
	}
	if roles.creates != 0 {
		t.Fatalf("existing roles were recreated %d times", roles.creates)
	}
}

func TestRunScoringPassSkipsGhostsWithoutRecruitments(t *testing.T) {
	store := repository.NewMemoryStore()
	ghost := RoleRef{ID: "r-ghost", Name: "Ghost Member"}
	roles := newFakeRoles(ghost)
	seedJoins(t, store, "a", 1)

	dir := &fakeDirectory{members: []GuildMember{{ID: "a"}, {ID: "b", Roles: []RoleRef{ghost}}}}
	svc := NewActivityService(store, dir, roles, testActivityConfig(), zaptest.NewLogger(t))
	report, err := svc.RunScoringPass(context.Background(), testGuild, scoringNow)
	if err != nil {
		t.Fatalf("scoring pass: %v", err)
	}
	if !report.GhostPassSkipped || report.Ghosts != nil {
		t.Fatalf("report = %+v", report)
	}
	want := []roleCall{{"add", "a", "Regular Member"}}
	if got := roles.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("role calls = %v, want %v", got, want)
	}
	if roles.creates != 1 {
		t.Fatalf("regular role creates = %d, want 1", roles.creates)
	}
}

func TestRunScoringPassIsolatesMemberFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	roles := newFakeRoles()
	roles.failFor["b"] = true
	seedJoins(t, store, "a", 3)
	seedJoins(t, store, "b", 2)
	seedJoins(t, store, "c", 1)

	dir := &fakeDirectory{members: []GuildMember{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	svc := NewActivityService(store, dir, roles, testActivityConfig(), zaptest.NewLogger(t))
	report, err := svc.RunScoringPass(context.Background(), testGuild, scoringNow)
	if err != nil {
		t.Fatalf("scoring pass: %v", err)
	}
	if report.FailedMembers != 1 || report.RolesAdded != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunScoringPassDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("gateway unavailable")}
	svc := NewActivityService(repository.NewMemoryStore(), dir, newFakeRoles(), testActivityConfig(), zaptest.NewLogger(t))
	if _, err := svc.RunScoringPass(context.Background(), testGuild, scoringNow); err == nil {
		t.Fatal("expected error")
	}
}
