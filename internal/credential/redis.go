package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pyresume/dashclient/internal/domain"
	redisclient "github.com/pyresume/dashclient/internal/redis"
)

var tracer = otel.Tracer("credential")

// sessionKeyPrefix is the Redis key prefix for session hashes.
// Key pattern: dashclient:session:{session_id}, one hash per client session
// with fields accessToken, refreshToken, user_email.
const sessionKeyPrefix = "dashclient:session:"

// RedisStore keeps the credential slots in a single Redis hash, which lets
// several processes sharing a session ID share one session. Reads fail
// closed: a Redis error is logged and the slot reported as absent, which
// routes the caller through the normal unauthenticated path.
type RedisStore struct {
	cmd    redisclient.Cmdable
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisStoreConfig holds configuration for creating a RedisStore.
type RedisStoreConfig struct {
	Cmd       redisclient.Cmdable
	SessionID string
	TTL       time.Duration // refreshed on every Set; 0 disables expiry
	Logger    *slog.Logger
}

// NewRedisStore creates a RedisStore scoped to cfg.SessionID.
func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		cmd:    cfg.Cmd,
		key:    sessionKeyPrefix + cfg.SessionID,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// Access returns the stored access token, or "" if absent or unreadable.
func (s *RedisStore) Access(ctx context.Context) string {
	return s.get(ctx, domain.SlotAccess)
}

// Refresh returns the stored refresh token, or "" if absent or unreadable.
func (s *RedisStore) Refresh(ctx context.Context) string {
	return s.get(ctx, domain.SlotRefresh)
}

// Identity returns the stored identity hint, or "" if absent or unreadable.
func (s *RedisStore) Identity(ctx context.Context) string {
	return s.get(ctx, domain.SlotIdentity)
}

// Set writes the non-empty fields of p with HSET and refreshes the TTL in
// the same MULTI/EXEC block.
func (s *RedisStore) Set(ctx context.Context, p Pair) error {
	ctx, span := tracer.Start(ctx, "redis.credential.set")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "HSET"),
	)

	fields := make(map[string]any, 3)
	if p.Access != "" {
		fields[domain.SlotAccess] = p.Access
	}
	if p.Refresh != "" {
		fields[domain.SlotRefresh] = p.Refresh
	}
	if p.Identity != "" {
		fields[domain.SlotIdentity] = p.Identity
	}
	if len(fields) == 0 {
		return nil
	}

	_, err := s.cmd.TxPipelined(ctx, func(pipe redisclient.Pipeliner) error {
		pipe.HSet(ctx, s.key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("set credentials %q: %w", s.key, err)
	}

	return nil
}

// Clear deletes the session hash, removing all three slots at once.
func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.credential.clear")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "DEL"),
	)

	if err := s.cmd.Del(ctx, s.key).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("clear credentials %q: %w", s.key, err)
	}

	return nil
}

func (s *RedisStore) get(ctx context.Context, field string) string {
	ctx, span := tracer.Start(ctx, "redis.credential.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "HGET"),
		attribute.String("credential.slot", field),
	)

	val, err := s.cmd.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redisclient.Nil) {
		return ""
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "credential read failed, treating slot as absent",
			"slot", field, "error", err)
		return ""
	}

	return val
}

var _ Store = (*RedisStore)(nil)
