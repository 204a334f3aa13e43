package session

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/xid"
)

// MemoryRegistry keeps live sessions in process memory. State is lost on
// restart, which is acceptable for dev mode and tests; production deployments
// use the redis registry.
type MemoryRegistry struct {
	mu             sync.RWMutex
	sessions       map[string]domain.Session
	openByKeeperID map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions:       make(map[string]domain.Session),
		openByKeeperID: make(map[string]string),
	}
}

func (r *MemoryRegistry) Open(_ context.Context, shopID, shopkeeperID, username string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.openByKeeperID[shopkeeperID]; exists {
		return nil, ErrDuplicateSession
	}

	sess := domain.Session{
		ID:           xid.New("sess"),
		ShopID:       shopID,
		ShopkeeperID: shopkeeperID,
		Username:     username,
		StartTime:    time.Now().UTC(),
	}
	r.sessions[sess.ID] = sess
	r.openByKeeperID[shopkeeperID] = sess.ID

	out := sess
	return &out, nil
}

func (r *MemoryRegistry) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := sess
	return &out, nil
}

func (r *MemoryRegistry) GetOpenForShopkeeper(_ context.Context, shopkeeperID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.openByKeeperID[shopkeeperID]
	if !ok {
		return nil, ErrNotFound
	}
	sess := r.sessions[id]
	out := sess
	return &out, nil
}

func (r *MemoryRegistry) ListOpen(_ context.Context, shopID string) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if shopID != "" && sess.ShopID != shopID {
			continue
		}
		sessions = append(sessions, sess)
	}
	slices.SortFunc(sessions, func(a, b domain.Session) int {
		if a.StartTime.Equal(b.StartTime) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.StartTime.Before(b.StartTime) {
			return -1
		}
		return 1
	})
	return sessions, nil
}

func (r *MemoryRegistry) Record(_ context.Context, sessionID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		log.Printf("[session] WARN: recording sale against unknown session %s", sessionID)
		return nil
	}
	sess.SalesCount++
	sess.TotalAmount += amount
	r.sessions[sessionID] = sess
	return nil
}

func (r *MemoryRegistry) End(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	sess.EndTime = &now
	delete(r.sessions, sessionID)
	delete(r.openByKeeperID, sess.ShopkeeperID)

	out := sess
	return &out, nil
}
