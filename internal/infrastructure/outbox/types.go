package outbox

import (
	"time"

	"github.com/fastygo/taskhub/domain"
)

// Entry is an activity event waiting for delivery.
type Entry struct {
	Event     domain.Event `json:"event"`
	Retries   int          `json:"retries"`
	Timestamp time.Time    `json:"timestamp"`

	bucketKey []byte
}

func (e *Entry) normalize() {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}

func (e Entry) ID() string {
	return e.Event.ID
}
