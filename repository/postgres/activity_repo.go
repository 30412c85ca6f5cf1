package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a Postgres-backed ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) repository.ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Append(ctx context.Context, event domain.Event) error {
	if event.ID == "" || event.Name == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO activity_events (id, name, entity_kind, entity_id, actor_id, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (id) DO NOTHING
	`
	var payload []byte
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		event.ID,
		event.Name,
		event.EntityKind,
		event.EntityID,
		event.ActorID,
		payload,
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *activityRepository) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.Event, error) {
	const query = `
	SELECT id, name, entity_kind, entity_id, actor_id, payload, created_at
	FROM activity_events
	WHERE ($1 = '' OR entity_kind = $1)
	  AND ($2 = '' OR entity_id = $2)
	ORDER BY created_at DESC
	LIMIT $3
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, filter.EntityKind, filter.EntityID, repository.ClampLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event   domain.Event
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.Name, &event.EntityKind, &event.EntityID, &event.ActorID, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			event.Payload = append([]byte(nil), payload...)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
