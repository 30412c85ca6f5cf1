package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

const sessionPrefix = "taskhub:session:"

type sessionRepository struct {
	client redislib.UniversalClient
	ttl    time.Duration
}

// NewSessionRepository stores sessions as JSON values that expire with the session.
func NewSessionRepository(client redislib.UniversalClient, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionRepository{client: client, ttl: ttl}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" || session.UserID == "" {
		return domain.ErrInvalidPayload
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return domain.ErrSessionNotFound
	}
	return r.client.Set(ctx, sessionPrefix+session.ID, payload, ttl).Err()
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionPrefix+id).Err()
}

func (r *sessionRepository) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	key := sessionPrefix + id
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	payload, ttl, err := renew(raw, expiresAt, time.Now())
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, key, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// renew rewrites the stored session with a new expiry and returns the key TTL matching it.
func renew(raw []byte, expiresAt, now time.Time) ([]byte, time.Duration, error) {
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, 0, err
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil, 0, domain.ErrSessionNotFound
	}
	session.ExpiresAt = expiresAt.UTC()
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, 0, err
	}
	return payload, ttl, nil
}
