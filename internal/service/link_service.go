package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/repository"
	"joinus/partyboard/pkg/crypto"
)

const linkStatePrefix = "link_state:"

// linkStateData is the pending link request stored under a state token.
type linkStateData struct {
	MemberID string `json:"member_id"`
}

// LinkService connects a member to their Riot account through the
// authorization code flow.
type LinkService interface {
	// BeginLink stores a single-use state for memberID and returns the
	// authorize URL to send the member to.
	BeginLink(ctx context.Context, memberID string) (string, error)
	// CompleteLink consumes state, exchanges code and stores the account.
	CompleteLink(ctx context.Context, code, state string) (*model.LinkedAccount, string, error)
	// AccessToken returns the member's stored Riot access token.
	AccessToken(ctx context.Context, memberID string) (string, error)
}

type linkService struct {
	auth       RiotAuthClient
	accounts   repository.LinkedAccountRepository
	stateStore repository.StateStore
	sealer     *crypto.Sealer
	stateTTL   time.Duration
	logger     *zap.Logger
}

// NewLinkService returns a LinkService. A nil auth client disables linking.
func NewLinkService(
	auth RiotAuthClient,
	accounts repository.LinkedAccountRepository,
	stateStore repository.StateStore,
	sealer *crypto.Sealer,
	stateTTL time.Duration,
	logger *zap.Logger,
) LinkService {
	return &linkService{
		auth:       auth,
		accounts:   accounts,
		stateStore: stateStore,
		sealer:     sealer,
		stateTTL:   stateTTL,
		logger:     logger.Named("link"),
	}
}

func (s *linkService) BeginLink(ctx context.Context, memberID string) (string, error) {
	if s.auth == nil {
		return "", ErrLinkNotConfigured
	}
	if !model.ValidSnowflake(memberID) {
		return "", fmt.Errorf("%w: member id %q", ErrInvalidInput, memberID)
	}

	stateToken, err := crypto.GenerateStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	data, _ := json.Marshal(linkStateData{MemberID: memberID})
	if err := s.stateStore.Set(ctx, linkStatePrefix+stateToken, data, s.stateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return s.auth.AuthCodeURL(stateToken), nil
}

func (s *linkService) CompleteLink(ctx context.Context, code, state string) (*model.LinkedAccount, string, error) {
	if s.auth == nil {
		return nil, MessageFor(ErrLinkNotConfigured), ErrLinkNotConfigured
	}

	stateData, err := s.consumeState(ctx, state)
	if err != nil {
		return nil, MessageFor(err), err
	}
	log := s.logger.With(zap.String("member_id", stateData.MemberID))

	if code == "" {
		return nil, MessageFor(ErrLinkExchange), ErrLinkExchange
	}
	tokens, err := s.auth.Exchange(ctx, code)
	if err != nil {
		log.Warn("riot code exchange failed", zap.Error(err))
		return nil, MessageFor(ErrLinkExchange), fmt.Errorf("%w: %v", ErrLinkExchange, err)
	}
	puuid, err := s.auth.FetchPUUID(ctx, tokens.AccessToken)
	if err != nil {
		log.Warn("riot userinfo failed", zap.Error(err))
		return nil, MessageFor(ErrLinkExchange), fmt.Errorf("%w: %v", ErrLinkExchange, err)
	}

	acct := &model.LinkedAccount{MemberID: stateData.MemberID, RiotPUUID: puuid}
	if acct.SealedAccessToken, err = s.sealer.Seal(tokens.AccessToken); err != nil {
		return nil, MessageFor(err), err
	}
	if acct.SealedRefreshToken, err = s.sealer.Seal(tokens.RefreshToken); err != nil {
		return nil, MessageFor(err), err
	}
	if err := s.accounts.Upsert(ctx, acct); err != nil {
		perr := persistenceErr("store linked account", err)
		log.Error("link failed", zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	log.Info("riot account linked")
	return acct, msgLinked, nil
}

// consumeState pops the pending state so a callback can be replayed at most once.
func (s *linkService) consumeState(ctx context.Context, state string) (*linkStateData, error) {
	if state == "" {
		return nil, ErrLinkStateInvalid
	}
	data, err := s.stateStore.Pop(ctx, linkStatePrefix+state)
	if err != nil || data == nil {
		return nil, ErrLinkStateInvalid
	}

	var stateData linkStateData
	if err := json.Unmarshal(data, &stateData); err != nil || !model.ValidSnowflake(stateData.MemberID) {
		return nil, ErrLinkStateInvalid
	}
	return &stateData, nil
}

func (s *linkService) AccessToken(ctx context.Context, memberID string) (string, error) {
	acct, err := s.accounts.Get(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotLinked
		}
		return "", persistenceErr("get linked account", err)
	}
	return s.sealer.Open(acct.SealedAccessToken)
}
