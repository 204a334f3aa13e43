// Package session tracks open shopkeeper work sessions. The registry is the
// only writer of live session state; once a session ends, its final snapshot
// is handed back to the caller and the registry forgets it.
package session

import (
	"context"
	"errors"

	"vapetrack/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrDuplicateSession = errors.New("shopkeeper already has an open session")
)

// Registry owns live sessions. Record is fire-and-forget bookkeeping: an
// unknown session id is logged and swallowed so a completed sale is never
// rolled back over registry state.
type Registry interface {
	Open(ctx context.Context, shopID, shopkeeperID, username string) (*domain.Session, error)
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetOpenForShopkeeper(ctx context.Context, shopkeeperID string) (*domain.Session, error)
	ListOpen(ctx context.Context, shopID string) ([]domain.Session, error)
	Record(ctx context.Context, sessionID string, amount int64) error
	End(ctx context.Context, sessionID string) (*domain.Session, error)
}
