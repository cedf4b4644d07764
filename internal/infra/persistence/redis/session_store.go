package redis

import (
	"context"
	"strconv"
	"time"

	"gateway/config"
	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/errors"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Session hash fields.
const (
	fieldID          = "id"
	fieldUserID      = "user_id"
	fieldAccessHash  = "access_hash"
	fieldRefreshHash = "refresh_hash"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// replaceSessionScript drops the user's current session with its refresh index, then writes the new one.
// KEYS[1] user index key. ARGV: session prefix, refresh prefix, id, user id, access hash, refresh hash, now, ttl ms.
const replaceSessionScript = `
local user_key = KEYS[1]
local session_prefix = ARGV[1]
local refresh_prefix = ARGV[2]

local old_id = redis.call("GET", user_key)
if old_id then
  local old_key = session_prefix .. old_id
  local old_refresh = redis.call("HGET", old_key, "refresh_hash")
  if old_refresh then
    redis.call("DEL", refresh_prefix .. old_refresh)
  end
  redis.call("DEL", old_key)
end

local session_key = session_prefix .. ARGV[3]
redis.call("HSET", session_key,
  "id", ARGV[3], "user_id", ARGV[4],
  "access_hash", ARGV[5], "refresh_hash", ARGV[6],
  "created_at", ARGV[7], "updated_at", ARGV[7])
redis.call("PEXPIRE", session_key, ARGV[8])
redis.call("SET", user_key, ARGV[3], "PX", ARGV[8])
redis.call("SET", refresh_prefix .. ARGV[6], ARGV[3], "PX", ARGV[8])
return 1
`

// rotateTokensScript swaps both hashes only if the stored refresh hash is still the expected one.
// KEYS[1] session key. ARGV: refresh prefix, user prefix, expected refresh, access hash, refresh hash, now, ttl ms.
const rotateTokensScript = `
local session_key = KEYS[1]
local current = redis.call("HGET", session_key, "refresh_hash")
if not current or current ~= ARGV[3] then
  return 0
end

local id = redis.call("HGET", session_key, "id")
local user_id = redis.call("HGET", session_key, "user_id")
redis.call("DEL", ARGV[1] .. current)
redis.call("HSET", session_key, "access_hash", ARGV[4], "refresh_hash", ARGV[5], "updated_at", ARGV[6])
redis.call("PEXPIRE", session_key, ARGV[7])
redis.call("SET", ARGV[1] .. ARGV[5], id, "PX", ARGV[7])
redis.call("PEXPIRE", ARGV[2] .. user_id, ARGV[7])
return 1
`

// deleteUserSessionScript removes the user's session and both of its index keys.
// KEYS[1] user index key. ARGV: session prefix, refresh prefix.
const deleteUserSessionScript = `
local id = redis.call("GET", KEYS[1])
if not id then
  return 0
end

local session_key = ARGV[1] .. id
local refresh = redis.call("HGET", session_key, "refresh_hash")
if refresh then
  redis.call("DEL", ARGV[2] .. refresh)
end
redis.call("DEL", session_key, KEYS[1])
return 1
`

var (
	replaceSessionLua    = goredis.NewScript(replaceSessionScript)
	rotateTokensLua      = goredis.NewScript(rotateTokensScript)
	deleteUserSessionLua = goredis.NewScript(deleteUserSessionScript)
)

// sessionStore implements repository.SessionRepository on Redis.
// Keys: <prefix>:session:<id> (hash), <prefix>:session:user:<uid> and
// <prefix>:session:refresh:<hash> (both holding the session id). All expire after the refresh lifetime.
type sessionStore struct {
	client        goredis.UniversalClient
	sessionPrefix string
	userPrefix    string
	refreshPrefix string
	ttl           time.Duration
	now           func() time.Time
}

// NewSessionStore is the constructor for the Redis session store.
func NewSessionStore(client *goredis.Client, cfg *config.Config) repository.SessionRepository {
	return newSessionStore(client, cfg.Session.KeyPrefix, cfg.Auth.RefreshTTL, time.Now)
}

func newSessionStore(client goredis.UniversalClient, prefix string, ttl time.Duration, now func() time.Time) *sessionStore {
	base := prefix + ":session:"

	return &sessionStore{
		client:        client,
		sessionPrefix: base,
		userPrefix:    base + "user:",
		refreshPrefix: base + "refresh:",
		ttl:           ttl,
		now:           now,
	}
}

// ReplaceSession installs a new session for userID in one script run.
func (s *sessionStore) ReplaceSession(ctx context.Context, userID uuid.UUID, accessHash, refreshHash string) (*entity.Session, error) {
	now := s.now().UTC()
	session := &entity.Session{
		ID:               uuid.New(),
		UserID:           userID,
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := replaceSessionLua.Run(ctx, s.client,
		[]string{s.userPrefix + userID.String()},
		s.sessionPrefix, s.refreshPrefix,
		session.ID.String(), userID.String(),
		accessHash, refreshHash,
		now.UnixNano(), s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to replace session in redis")
	}

	return session, nil
}

// FindByRefresh resolves the refresh index and loads the session it points to.
func (s *sessionStore) FindByRefresh(ctx context.Context, refreshHash string) (*entity.Session, error) {
	session, err := s.loadByIndex(ctx, s.refreshPrefix+refreshHash)
	if err != nil {
		return nil, err
	}
	// The index may briefly outlive a rotation; the hash field is authoritative.
	if session.RefreshTokenHash != refreshHash {
		return nil, domainerrors.ErrSessionNotFound
	}

	return session, nil
}

// FindByUserID resolves the user index and loads the session it points to.
func (s *sessionStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Session, error) {
	return s.loadByIndex(ctx, s.userPrefix+userID.String())
}

// UpdateTokens rotates both hashes if the session still carries session.RefreshTokenHash.
func (s *sessionStore) UpdateTokens(ctx context.Context, session *entity.Session, accessHash, refreshHash string) (*entity.Session, error) {
	now := s.now().UTC()

	swapped, err := rotateTokensLua.Run(ctx, s.client,
		[]string{s.sessionPrefix + session.ID.String()},
		s.refreshPrefix, s.userPrefix,
		session.RefreshTokenHash, accessHash, refreshHash,
		now.UnixNano(), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to rotate session tokens in redis")
	}
	if swapped == 0 {
		return nil, domainerrors.ErrSessionNotFound
	}

	rotated := *session
	rotated.AccessTokenHash = accessHash
	rotated.RefreshTokenHash = refreshHash
	rotated.UpdatedAt = now

	return &rotated, nil
}

// DeleteByUserID removes the user's session and its index keys.
func (s *sessionStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	err := deleteUserSessionLua.Run(ctx, s.client,
		[]string{s.userPrefix + userID.String()},
		s.sessionPrefix, s.refreshPrefix,
	).Err()
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to delete session in redis")
	}

	return nil
}

func (s *sessionStore) loadByIndex(ctx context.Context, indexKey string) (*entity.Session, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domainerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to read session index")
	}

	fields, err := s.client.HGetAll(ctx, s.sessionPrefix+id).Result()
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to read session")
	}
	if len(fields) == 0 {
		return nil, domainerrors.ErrSessionNotFound
	}

	return decodeSession(fields)
}

func decodeSession(fields map[string]string) (*entity.Session, error) {
	id, err := uuid.Parse(fields[fieldID])
	if err != nil {
		return nil, errors.Wrap(err, "corrupt session id")
	}
	userID, err := uuid.Parse(fields[fieldUserID])
	if err != nil {
		return nil, errors.Wrap(err, "corrupt session user id")
	}
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt session created_at")
	}
	updatedAt, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt session updated_at")
	}

	return &entity.Session{
		ID:               id,
		UserID:           userID,
		AccessTokenHash:  fields[fieldAccessHash],
		RefreshTokenHash: fields[fieldRefreshHash],
		CreatedAt:        time.Unix(0, createdAt).UTC(),
		UpdatedAt:        time.Unix(0, updatedAt).UTC(),
	}, nil
}
