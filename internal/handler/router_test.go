package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/repository"
	"joinus/partyboard/internal/service"
	jwtpkg "joinus/partyboard/pkg/jwt"
)

const (
	testGuild   = "100000000000000001"
	testCreator = "200000000000000001"
	testMember  = "200000000000000002"
	testAdmin   = "200000000000000009"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, memberID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, memberID)
	return nil
}

type stubActivity struct{ guild string }

func (s *stubActivity) RunScoringPass(_ context.Context, guildID string, _ time.Time) (*service.ScoringReport, error) {
	s.guild = guildID
	return &service.ScoringReport{GuildID: guildID, Regulars: []string{testMember}}, nil
}

type stubRanks struct{}

func (stubRanks) RefreshMemberRanks(_ context.Context, guildID string, _ time.Time) (*service.RankReport, error) {
	return nil, errors.New("riot unavailable")
}

type stubLinks struct{}

func (stubLinks) BeginLink(_ context.Context, memberID string) (string, error) {
	return "https://auth.example.test/authorize?state=s-" + memberID, nil
}

func (stubLinks) CompleteLink(_ context.Context, code, state string) (*model.LinkedAccount, string, error) {
	if state != "good" {
		return nil, service.MessageFor(service.ErrLinkStateInvalid), service.ErrLinkStateInvalid
	}
	return &model.LinkedAccount{}, "Your <b>Riot</b> account has been linked.", nil
}

func (stubLinks) AccessToken(context.Context, string) (string, error) { return "", nil }

type testServer struct {
	router   *gin.Engine
	jwt      *jwtpkg.Manager
	notifier *recordingNotifier
	activity *stubActivity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{
		Server:      config.ServerConfig{Mode: "test"},
		Admin:       config.AdminConfig{MemberIDs: []string{testAdmin}},
		Recruitment: config.RecruitmentConfig{Timezone: "Asia/Tokyo"},
	}
	store := repository.NewMemoryStore()
	loc, _ := time.LoadLocation("Asia/Tokyo")
	now := time.Date(2025, 7, 7, 12, 0, 0, 0, loc)
	recruitments, err := service.NewRecruitmentService(store, store, store, cfg.Recruitment, func() time.Time { return now }, logger)
	if err != nil {
		t.Fatalf("recruitment service: %v", err)
	}

	notifier := &recordingNotifier{}
	activity := &stubActivity{}
	jwtManager := jwtpkg.NewManager("test-signing-key", "partyboard", time.Hour)
	router := SetupRouter(cfg, logger, jwtManager,
		NewRecruitmentHandler(recruitments, service.NewNotificationService(notifier, logger), logger),
		NewLinkHandler(stubLinks{}),
		NewAdminHandler(activity, stubRanks{}),
	)
	return &testServer{router: router, jwt: jwtManager, notifier: notifier, activity: activity}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, memberID string, body interface{}) (int, apiResponse) {
	t.Helper()
	return s.doInGuild(t, method, path, memberID, testGuild, body)
}

func (s *testServer) doInGuild(t *testing.T, method, path, memberID, guildID string, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if memberID != "" {
		token, err := s.jwt.GenerateAccessToken(memberID, guildID)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w.Code, resp
}

type recruitmentBody struct {
	ID              string   `json:"id"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
	Remaining       int      `json:"remaining"`
	Status          string   `json:"status"`
}

func decodeRecruitment(t *testing.T, raw json.RawMessage) recruitmentBody {
	t.Helper()
	var out recruitmentBody
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode recruitment: %v", err)
	}
	return out
}

func TestRecruitmentLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodPost, "/api/v1/recruitments", testCreator, gin.H{
		"party_type":       "Competitive",
		"additional_slots": 1,
		"deadline":         "21:00",
	})
	if status != http.StatusOK {
		t.Fatalf("create status = %d, body = %+v", status, resp)
	}
	rec := decodeRecruitment(t, resp.Data)
	if rec.MaxParticipants != 2 || rec.Remaining != 1 || len(rec.Participants) != 1 {
		t.Fatalf("created = %+v", rec)
	}

	status, resp = s.do(t, http.MethodPost, "/api/v1/recruitments", testCreator, gin.H{
		"party_type": "Competitive", "deadline": "22:00",
	})
	if status != http.StatusConflict || resp.Message == "" {
		t.Fatalf("second create = %d %+v", status, resp)
	}

	status, resp = s.do(t, http.MethodPost, "/api/v1/recruitments/"+rec.ID+"/join", testMember, nil)
	if status != http.StatusOK || resp.Message != "You joined the recruitment." {
		t.Fatalf("join = %d %+v", status, resp)
	}
	if got := decodeRecruitment(t, resp.Data); got.Remaining != 0 {
		t.Fatalf("after join = %+v", got)
	}

	status, resp = s.do(t, http.MethodPost, "/api/v1/recruitments/"+rec.ID+"/join", "200000000000000003", nil)
	if status != http.StatusConflict {
		t.Fatalf("join full = %d %+v", status, resp)
	}

	status, resp = s.do(t, http.MethodGet, "/api/v1/recruitments/open", testCreator, nil)
	if status != http.StatusOK || decodeRecruitment(t, resp.Data).ID != rec.ID {
		t.Fatalf("get open = %d %+v", status, resp)
	}

	status, resp = s.do(t, http.MethodPatch, "/api/v1/recruitments/open", testCreator, gin.H{"max_participants": 0})
	if status != http.StatusBadRequest {
		t.Fatalf("edit invalid = %d %+v", status, resp)
	}

	status, resp = s.do(t, http.MethodPost, "/api/v1/recruitments/open/cancel", testCreator, nil)
	if status != http.StatusOK {
		t.Fatalf("cancel = %d %+v", status, resp)
	}
	if len(s.notifier.sent) != 1 || s.notifier.sent[0] != testMember {
		t.Fatalf("notified = %v, want only %s", s.notifier.sent, testMember)
	}

	status, _ = s.do(t, http.MethodPost, "/api/v1/recruitments/"+rec.ID+"/leave", testMember, nil)
	if status != http.StatusConflict {
		t.Fatalf("leave cancelled = %d", status)
	}
	status, _ = s.do(t, http.MethodGet, "/api/v1/recruitments/open", testCreator, nil)
	if status != http.StatusNotFound {
		t.Fatalf("open after cancel = %d", status)
	}
}

func TestJoinAndLeaveStayInsideTokenGuild(t *testing.T) {
	s := newTestServer(t)
	_, resp := s.do(t, http.MethodPost, "/api/v1/recruitments", testCreator, gin.H{
		"party_type": "Competitive", "additional_slots": 2, "deadline": "21:00",
	})
	rec := decodeRecruitment(t, resp.Data)
	const otherGuild = "100000000000000999"

	status, _ := s.doInGuild(t, http.MethodPost, "/api/v1/recruitments/"+rec.ID+"/join", testMember, otherGuild, nil)
	if status != http.StatusNotFound {
		t.Fatalf("join from other guild = %d, want 404", status)
	}
	status, _ = s.doInGuild(t, http.MethodPost, "/api/v1/recruitments/"+rec.ID+"/leave", testCreator, otherGuild, nil)
	if status != http.StatusNotFound {
		t.Fatalf("leave from other guild = %d, want 404", status)
	}

	status, resp = s.do(t, http.MethodGet, "/api/v1/recruitments/"+rec.ID, testMember, nil)
	if status != http.StatusOK {
		t.Fatalf("get = %d", status)
	}
	if got := decodeRecruitment(t, resp.Data); len(got.Participants) != 1 || got.Remaining != 2 {
		t.Fatalf("roster changed across guilds: %+v", got)
	}
}

func TestAttachMessageOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, resp := s.do(t, http.MethodPost, "/api/v1/recruitments", testCreator, gin.H{"party_type": "Unrated", "deadline": "23:00"})
	rec := decodeRecruitment(t, resp.Data)

	status, _ := s.do(t, http.MethodPut, "/api/v1/recruitments/"+rec.ID+"/message", testMember, gin.H{"message_ref": "900000000000000001"})
	if status != http.StatusForbidden {
		t.Fatalf("attach by non-creator = %d", status)
	}
	status, _ = s.do(t, http.MethodPut, "/api/v1/recruitments/"+rec.ID+"/message", testCreator, gin.H{"message_ref": "900000000000000001"})
	if status != http.StatusOK {
		t.Fatalf("attach = %d", status)
	}
	status, resp = s.do(t, http.MethodGet, "/api/v1/recruitments/by-message/900000000000000001", testMember, nil)
	if status != http.StatusOK || decodeRecruitment(t, resp.Data).ID != rec.ID {
		t.Fatalf("by message = %d %+v", status, resp)
	}
	status, _ = s.do(t, http.MethodGet, "/api/v1/recruitments/not-a-uuid", testMember, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad id = %d", status)
	}
}

func TestAuthAndAdminGuards(t *testing.T) {
	s := newTestServer(t)

	if status, _ := s.do(t, http.MethodGet, "/api/v1/recruitments/open", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token = %d", status)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/v1/admin/guilds/"+testGuild+"/activity-pass", testMember, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin = %d", status)
	}
	status, resp := s.do(t, http.MethodPost, "/api/v1/admin/guilds/"+testGuild+"/activity-pass", testAdmin, nil)
	if status != http.StatusOK || s.activity.guild != testGuild {
		t.Fatalf("activity pass = %d %+v", status, resp)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/v1/admin/guilds/"+testGuild+"/rank-refresh", testAdmin, nil); status != http.StatusInternalServerError {
		t.Fatalf("rank refresh failure = %d", status)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/v1/admin/guilds/abc/rank-refresh", testAdmin, nil); status != http.StatusBadRequest {
		t.Fatalf("bad guild = %d", status)
	}
}

func TestLinkEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodPost, "/api/v1/links/riot", testMember, nil)
	if status != http.StatusOK || !strings.Contains(string(resp.Data), "s-"+testMember) {
		t.Fatalf("begin = %d %+v", status, resp)
	}

	for _, tt := range []struct {
		query  string
		status int
		body   string
	}{
		{"?code=c&state=good", http.StatusOK, "Your &lt;b&gt;Riot&lt;/b&gt; account has been linked."},
		{"?code=c&state=stale", http.StatusBadRequest, "Link failed"},
		{"?error=access_denied", http.StatusBadRequest, "Authorization was denied."},
		{"", http.StatusBadRequest, "Missing code or state."},
	} {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/callback"+tt.query, nil))
		if w.Code != tt.status || !strings.Contains(w.Body.String(), tt.body) {
			t.Fatalf("callback%s = %d %s", tt.query, w.Code, w.Body.String())
		}
	}
}
