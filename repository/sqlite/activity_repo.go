package sqlite

import (
	"context"
	"database/sql"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/repository"
)

type activityRepository struct {
	db *sql.DB
}

// NewActivityRepository returns a SQLite-backed ActivityRepository.
func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, event domain.Event) error {
	if event.ID == "" || event.Name == "" {
		return domain.ErrInvalidPayload
	}
	var payload sql.NullString
	if len(event.Payload) > 0 {
		payload = sql.NullString{String: string(event.Payload), Valid: true}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	INSERT INTO activity_events (id, name, entity_kind, entity_id, actor_id, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Name, event.EntityKind, event.EntityID, event.ActorID, payload, formatTime(stamp(event.CreatedAt)),
	)
	return err
}

func (r *activityRepository) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.Event, error) {
	const query = `
	SELECT id, name, entity_kind, entity_id, actor_id, payload, created_at
	FROM activity_events
	WHERE (?1 = '' OR entity_kind = ?1)
	  AND (?2 = '' OR entity_id = ?2)
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?3
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, filter.EntityKind, filter.EntityID, repository.ClampLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event     domain.Event
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.Name, &event.EntityKind, &event.EntityID, &event.ActorID, &payload, &createdAt); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = []byte(payload.String)
		}
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
