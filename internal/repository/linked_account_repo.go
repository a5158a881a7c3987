package repository

import (
	"context"
	"time"

	"joinus/partyboard/internal/model"
)

type LinkedAccountRepository interface {
	// Upsert inserts the account or replaces its PUUID and sealed tokens.
	// Rank fields are left as stored.
	Upsert(ctx context.Context, acct *model.LinkedAccount) error
	Get(ctx context.Context, memberID string) (*model.LinkedAccount, error)
	ListLinked(ctx context.Context) ([]model.LinkedAccount, error)
	UpdateRank(ctx context.Context, memberID, tier string, checkedAt time.Time) error
}
