package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/xid"
)

const (
	sessionKeyPrefix = "vapetrack:session:"
	openKeyPrefix    = "vapetrack:session:open:"
	openIndexKey     = "vapetrack:sessions:open"
)

// RedisRegistry keeps live sessions in redis so they survive process
// restarts and are shared across server instances. Record uses HIncrBy, so
// concurrent sales from multiple processes never lose an increment.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(addr string, password string, db int) *RedisRegistry {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisRegistry) Open(ctx context.Context, shopID, shopkeeperID, username string) (*domain.Session, error) {
	sess := domain.Session{
		ID:           xid.New("sess"),
		ShopID:       shopID,
		ShopkeeperID: shopkeeperID,
		Username:     username,
		StartTime:    time.Now().UTC(),
	}

	// The open-session marker is the duplicate guard: SetNX loses the race
	// for a shopkeeper who already has one.
	ok, err := r.client.SetNX(ctx, openKeyPrefix+shopkeeperID, sess.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("registry open: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateSession
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKeyPrefix+sess.ID, map[string]any{
		"shop_id":       sess.ShopID,
		"shopkeeper_id": sess.ShopkeeperID,
		"username":      sess.Username,
		"start_time":    sess.StartTime.Format(time.RFC3339Nano),
		"sales_count":   0,
		"total_amount":  0,
	})
	pipe.SAdd(ctx, openIndexKey, sess.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.client.Del(ctx, openKeyPrefix+shopkeeperID)
		return nil, fmt.Errorf("registry open: %w", err)
	}

	return &sess, nil
}

func (r *RedisRegistry) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("registry get: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return sessionFromHash(sessionID, fields)
}

func (r *RedisRegistry) GetOpenForShopkeeper(ctx context.Context, shopkeeperID string) (*domain.Session, error) {
	id, err := r.client.Get(ctx, openKeyPrefix+shopkeeperID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RedisRegistry) ListOpen(ctx context.Context, shopID string) ([]domain.Session, error) {
	ids, err := r.client.SMembers(ctx, openIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("registry list: %w", err)
	}

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry from a crashed End; drop it.
			r.client.SRem(ctx, openIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if shopID != "" && sess.ShopID != shopID {
			continue
		}
		sessions = append(sessions, *sess)
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

func (r *RedisRegistry) Record(ctx context.Context, sessionID string, amount int64) error {
	exists, err := r.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return fmt.Errorf("registry record: %w", err)
	}
	if exists == 0 {
		log.Printf("[session] WARN: recording sale against unknown session %s", sessionID)
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, sessionKeyPrefix+sessionID, "sales_count", 1)
	pipe.HIncrBy(ctx, sessionKeyPrefix+sessionID, "total_amount", amount)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("registry record: %w", err)
	}
	return nil
}

func (r *RedisRegistry) End(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess.EndTime = &now

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID)
	pipe.Del(ctx, openKeyPrefix+sess.ShopkeeperID)
	pipe.SRem(ctx, openIndexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("registry end: %w", err)
	}
	return sess, nil
}

func sessionFromHash(id string, fields map[string]string) (*domain.Session, error) {
	start, err := time.Parse(time.RFC3339Nano, fields["start_time"])
	if err != nil {
		return nil, fmt.Errorf("registry: bad start_time for %s: %w", id, err)
	}
	count, _ := strconv.Atoi(fields["sales_count"])
	total, _ := strconv.ParseInt(fields["total_amount"], 10, 64)

	return &domain.Session{
		ID:           id,
		ShopID:       fields["shop_id"],
		ShopkeeperID: fields["shopkeeper_id"],
		Username:     fields["username"],
		StartTime:    start,
		SalesCount:   count,
		TotalAmount:  total,
	}, nil
}
