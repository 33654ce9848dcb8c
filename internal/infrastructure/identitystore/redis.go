package identitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edustack-web/internal/application/session"

	"github.com/redis/go-redis/v9"
)

// Redis key layout.
const (
	IdentityPrefix     = "identity:"      // identity:<session id> -> JSON Identity
	UserSessionsPrefix = "user_sessions:" // user_sessions:<user id> -> set of session ids
)

// RedisStore persists one session's identity in Redis.
type RedisStore struct {
	rdb       *redis.Client
	sessionID string
	ttl       time.Duration
}

// New returns the store for sessionID. A zero ttl keeps keys forever.
func New(rdb *redis.Client, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, sessionID: sessionID, ttl: ttl}
}

// Factory returns a session.StoreFactory over rdb.
func Factory(rdb *redis.Client, ttl time.Duration) session.StoreFactory {
	return func(sessionID string) session.Store {
		return New(rdb, sessionID, ttl)
	}
}

func (s *RedisStore) key() string { return IdentityPrefix + s.sessionID }

// Load returns (nil, nil) when nothing is stored. Undecodable data is
// reported as session.ErrMalformedIdentity.
func (s *RedisStore) Load(ctx context.Context) (*session.Identity, error) {
	b, err := s.rdb.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var id session.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrMalformedIdentity, err)
	}
	return &id, nil
}

// Save writes id and indexes the session under its user.
func (s *RedisStore) Save(ctx context.Context, id *session.Identity) error {
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(), b, s.ttl)
		if id.User.ID != "" {
			idx := UserSessionsPrefix + id.User.ID
			p.SAdd(ctx, idx, s.sessionID)
			if s.ttl > 0 {
				p.Expire(ctx, idx, s.ttl)
			}
		}
		return nil
	})
	return err
}

// Erase deletes the identity and drops the session from its user's index.
func (s *RedisStore) Erase(ctx context.Context) error {
	if cur, err := s.Load(ctx); err == nil && cur != nil && cur.User.ID != "" {
		_ = s.rdb.SRem(ctx, UserSessionsPrefix+cur.User.ID, s.sessionID).Err()
	}
	return s.rdb.Del(ctx, s.key()).Err()
}

// DestroyUserSessions deletes every persisted identity of userID and returns
// the session ids that were removed.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	idx := UserSessionsPrefix + userID
	sessionIDs, err := rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, IdentityPrefix+sid)
	}
	keys = append(keys, idx)
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return nil, err
	}
	return sessionIDs, nil
}
