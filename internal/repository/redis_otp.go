package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kc-allan/at-insurance/internal/model"
)

// incrementIfExists bumps the attempts field without resurrecting a session that
// has already been consumed or has expired.
var incrementIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

var deleteIfHash = redis.NewScript(`
if redis.call("HGET", KEYS[1], "code_hash") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOTPStore keeps OTP sessions in Redis hashes that expire on their own,
// retention after the session's ExpiresAt.
type RedisOTPStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisOTPStore(client redis.UniversalClient, retention time.Duration) *RedisOTPStore {
	return &RedisOTPStore{client: client, retention: retention}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}

func (s *RedisOTPStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisOTPStore) PutOTPSession(ctx context.Context, session model.OTPSession) error {
	key := otpKey(session.Phone)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", session.CodeHash,
			"expires_at", session.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"created_at", session.CreatedAt.UTC().Format(time.RFC3339Nano),
			"attempts", 0,
		)
		pipe.ExpireAt(ctx, key, session.ExpiresAt.Add(s.retention))
		return nil
	})
	return err
}

func (s *RedisOTPStore) GetOTPSession(ctx context.Context, phone string) (model.OTPSession, error) {
	values, err := s.client.HGetAll(ctx, otpKey(phone)).Result()
	if err != nil {
		return model.OTPSession{}, err
	}
	if len(values) == 0 || values["code_hash"] == "" {
		return model.OTPSession{}, ErrNotFound
	}
	session := model.OTPSession{Phone: phone, CodeHash: values["code_hash"]}
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, values["expires_at"]); err != nil {
		return model.OTPSession{}, fmt.Errorf("otp session expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, values["created_at"]); err != nil {
		return model.OTPSession{}, fmt.Errorf("otp session created_at: %w", err)
	}
	if raw := values["attempts"]; raw != "" {
		if session.Attempts, err = strconv.Atoi(raw); err != nil {
			return model.OTPSession{}, fmt.Errorf("otp session attempts: %w", err)
		}
	}
	return session, nil
}

func (s *RedisOTPStore) DeleteOTPSession(ctx context.Context, phone, codeHash string) (bool, error) {
	removed, err := deleteIfHash.Run(ctx, s.client, []string{otpKey(phone)}, codeHash).Int()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (s *RedisOTPStore) IncrementOTPAttempts(ctx context.Context, phone string) (int, error) {
	attempts, err := incrementIfExists.Run(ctx, s.client, []string{otpKey(phone)}).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if attempts < 0 {
		return 0, ErrNotFound
	}
	return attempts, nil
}

// DeleteExpiredOTPSessions is a no-op: keys carry their own EXPIREAT.
func (s *RedisOTPStore) DeleteExpiredOTPSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}
