package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
)

var (
	// ErrSessionNotFound is returned when no live record exists for a session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps every Redis transport or server failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Rotation is a single script so exactly one caller can retire the old id:
// the DEL result decides the winner, and only the winner installs the new record.
var rotateSessionLua = redis.NewScript(`
local removed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[3], ARGV[1])
if removed == 0 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[4])
redis.call("SADD", KEYS[3], ARGV[2])
if redis.call("PTTL", KEYS[3]) < tonumber(ARGV[4]) then
  redis.call("PEXPIRE", KEYS[3], ARGV[4])
end
return 1
`)

// The index must outlive every record it lists, so its TTL only ever grows.
// PTTL is negative for a key without expiry, which covers a fresh index.
var putSessionLua = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[1])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[3]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
return 1
`)

// Session keys are derived from the index members; both share the owner's
// hash tag so they live in one cluster slot.
var deleteAllSessionsLua = redis.NewScript(`
local ids = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, id in ipairs(ids) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`)

// StoreObserver receives the latency and outcome of every store call.
type StoreObserver interface {
	ObserveSessionStore(op string, duration time.Duration, err error)
}

// SessionStoreOptions tunes the Redis session repository.
type SessionStoreOptions struct {
	KeyPrefix          string
	OperationTimeout   time.Duration
	DeleteRetries      int
	DeleteRetryBackoff time.Duration
	Observer           StoreObserver
}

// SessionRepository keeps one Redis record per (namespace, user, session)
// plus a per-user SET of session ids used for enumeration.
type SessionRepository struct {
	client redis.UniversalClient
	opts   SessionStoreOptions
	logger *zap.Logger
}

// NewSessionRepository constructs a Redis session repository.
func NewSessionRepository(client redis.UniversalClient, opts SessionStoreOptions, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "session"
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 2 * time.Second
	}
	if opts.DeleteRetries < 1 {
		opts.DeleteRetries = 1
	}
	return &SessionRepository{client: client, opts: opts, logger: logger}
}

func (r *SessionRepository) ownerTag(owner models.SessionOwner) string {
	return "{" + url.QueryEscape(owner.Namespace) + ":" + url.QueryEscape(owner.UserID) + "}"
}

func (r *SessionRepository) sessionKeyPrefix(owner models.SessionOwner) string {
	return r.opts.KeyPrefix + ":s:" + r.ownerTag(owner) + ":"
}

func (r *SessionRepository) sessionKey(owner models.SessionOwner, sessionID string) string {
	return r.sessionKeyPrefix(owner) + sessionID
}

func (r *SessionRepository) indexKey(owner models.SessionOwner) string {
	return r.opts.KeyPrefix + ":u:" + r.ownerTag(owner)
}

func (r *SessionRepository) observe(op string, start time.Time, err error) {
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveSessionStore(op, time.Since(start), err)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// Put creates or overwrites a session record with the given TTL. The owner's
// index is never shortened by a record with a shorter TTL.
func (r *SessionRepository) Put(ctx context.Context, owner models.SessionOwner, session *models.Session, ttl time.Duration) (err error) {
	start := time.Now()
	defer func() { r.observe("put", start, err) }()

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	keys := []string{r.sessionKey(owner, session.SessionID), r.indexKey(owner)}
	if err = putSessionLua.Run(ctx, r.client, keys, session.SessionID, payload, ttl.Milliseconds()).Err(); err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Get returns the live record for sessionID under owner.
func (r *SessionRepository) Get(ctx context.Context, owner models.SessionOwner, sessionID string) (_ *models.Session, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrSessionNotFound) {
			r.observe("get", start, nil)
			return
		}
		r.observe("get", start, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.sessionKey(owner, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, unavailable("get", err)
	}

	session, err := decodeSession(raw)
	if err != nil {
		return nil, err
	}
	if session.SessionID != sessionID || session.UserID != owner.UserID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes one session. Deleting an absent session is not an error;
// the boolean reports whether a record was actually removed.
func (r *SessionRepository) Delete(ctx context.Context, owner models.SessionOwner, sessionID string) (deleted bool, err error) {
	start := time.Now()
	defer func() { r.observe("delete", start, err) }()

	err = r.retry(ctx, "delete", func(ctx context.Context) error {
		var del *redis.IntCmd
		_, txErr := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, r.sessionKey(owner, sessionID))
			pipe.SRem(ctx, r.indexKey(owner), sessionID)
			return nil
		})
		if txErr != nil {
			return txErr
		}
		deleted = del.Val() > 0
		return nil
	})
	return deleted, err
}

// ListByUser returns the owner's live sessions, newest first. Index members
// whose records already expired are pruned.
func (r *SessionRepository) ListByUser(ctx context.Context, owner models.SessionOwner) (_ []*models.Session, err error) {
	start := time.Now()
	defer func() { r.observe("list", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	index := r.indexKey(owner)
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	if len(ids) == 0 {
		return []*models.Session{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.sessionKey(owner, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("list", err)
	}

	sessions := make([]*models.Session, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		raw, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, unavailable("list", cmdErr)
		}
		session, decErr := decodeSession(raw)
		if decErr != nil || session.UserID != owner.UserID {
			r.logger.Warn("skipping unreadable session record", zap.String("session_id", ids[i]), zap.Error(decErr))
			continue
		}
		sessions = append(sessions, session)
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, index, stale...).Err(); err != nil {
			r.logger.Debug("failed to prune stale session ids", zap.Error(err))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// CountForUser returns how many of the owner's sessions are live.
func (r *SessionRepository) CountForUser(ctx context.Context, owner models.SessionOwner) (count int, err error) {
	start := time.Now()
	defer func() { r.observe("count", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	ids, err := r.client.SMembers(ctx, r.indexKey(owner)).Result()
	if err != nil {
		return 0, unavailable("count", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, r.sessionKey(owner, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, unavailable("count", err)
	}
	for _, cmd := range cmds {
		count += int(cmd.Val())
	}
	return count, nil
}

// DeleteAllForUser removes every session of the owner and returns how many
// records were deleted.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, owner models.SessionOwner) (removed int, err error) {
	start := time.Now()
	defer func() { r.observe("delete_all", start, err) }()

	err = r.retry(ctx, "delete_all", func(ctx context.Context) error {
		n, runErr := deleteAllSessionsLua.Run(ctx, r.client, []string{r.indexKey(owner)}, r.sessionKeyPrefix(owner)).Int()
		if runErr != nil {
			return runErr
		}
		removed = n
		return nil
	})
	return removed, err
}

// Rotate atomically retires oldSessionID and installs next in its place.
// It returns false when oldSessionID no longer existed, meaning another
// caller already rotated or revoked it.
func (r *SessionRepository) Rotate(ctx context.Context, owner models.SessionOwner, oldSessionID string, next *models.Session, ttl time.Duration) (won bool, err error) {
	start := time.Now()
	defer func() { r.observe("rotate", start, err) }()

	payload, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	keys := []string{
		r.sessionKey(owner, oldSessionID),
		r.sessionKey(owner, next.SessionID),
		r.indexKey(owner),
	}
	result, err := rotateSessionLua.Run(ctx, r.client, keys, oldSessionID, next.SessionID, payload, ttl.Milliseconds()).Int()
	if err != nil {
		return false, unavailable("rotate", err)
	}
	return result == 1, nil
}

// Ping checks store availability.
func (r *SessionRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// retry runs an idempotent delete up to DeleteRetries times.
func (r *SessionRepository) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.opts.DeleteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return unavailable(op, ctx.Err())
			case <-time.After(r.opts.DeleteRetryBackoff * time.Duration(attempt)):
			}
		}
		opCtx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
		lastErr = fn(opCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		r.logger.Warn("session store delete failed", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return unavailable(op, lastErr)
}

func decodeSession(raw []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
