package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/outbox"
	"github.com/fastygo/taskhub/internal/testutil"
	"github.com/fastygo/taskhub/repository"
)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []domain.Event
}

func (p *fakePublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type switchHealth struct{ online bool }

func (s *switchHealth) IsOnline() bool { return s.online }

type processorFixture struct {
	store     repository.Store
	outbox    *outbox.Store
	publisher *fakePublisher
	health    *switchHealth
	processor *OutboxProcessor
}

func newProcessorFixture(t *testing.T, maxRetries int) processorFixture {
	t.Helper()
	store := testutil.NewStore(t)
	box, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { box.Close() })

	f := processorFixture{
		store:     store,
		outbox:    box,
		publisher: &fakePublisher{},
		health:    &switchHealth{online: true},
	}
	f.processor = NewOutboxProcessor(box, f.health, store.Activity, f.publisher, nil, ProcessorConfig{MaxRetries: maxRetries})
	return f
}

func (f processorFixture) logged(t *testing.T) int {
	t.Helper()
	events, err := f.store.Activity.List(context.Background(), repository.ActivityFilter{})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	return len(events)
}

func newEvent() domain.Event {
	return domain.NewEvent(domain.EventTaskSubmitted, domain.EntityTask, "task-1", "user-1", map[string]string{"status": "Done"})
}

func TestRecordDeliversImmediately(t *testing.T) {
	f := newProcessorFixture(t, 3)
	ctx := context.Background()

	if err := f.processor.Record(ctx, newEvent()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if f.logged(t) != 1 || f.publisher.count() != 1 {
		t.Fatalf("logged=%d published=%d", f.logged(t), f.publisher.count())
	}
	if f.processor.Size() != 0 {
		t.Fatalf("outbox size = %d", f.processor.Size())
	}
}

func TestFailedPublishIsQueuedAndRetried(t *testing.T) {
	f := newProcessorFixture(t, 3)
	ctx := context.Background()

	f.publisher.fail(errors.New("nats down"))
	if err := f.processor.Record(ctx, newEvent()); err != nil {
		t.Fatalf("record should fall back to the outbox, got %v", err)
	}
	if f.processor.Size() != 1 {
		t.Fatalf("outbox size = %d, want 1", f.processor.Size())
	}

	f.publisher.fail(nil)
	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Fatalf("outbox size after drain = %d", f.processor.Size())
	}
	if f.logged(t) != 1 {
		t.Fatalf("retry must not duplicate the activity entry, got %d", f.logged(t))
	}
	if f.publisher.count() != 1 {
		t.Fatalf("published = %d", f.publisher.count())
	}
}

func TestOfflineEventsWaitForDrain(t *testing.T) {
	f := newProcessorFixture(t, 3)
	ctx := context.Background()
	f.health.online = false

	for i := 0; i < 3; i++ {
		if err := f.processor.Record(ctx, newEvent()); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if f.logged(t) != 0 {
		t.Fatal("offline events must not be delivered")
	}
	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 3 {
		t.Fatalf("drain while offline must keep entries, size = %d", f.processor.Size())
	}

	f.health.online = true
	if err := f.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 || f.logged(t) != 3 {
		t.Fatalf("size=%d logged=%d", f.processor.Size(), f.logged(t))
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	f := newProcessorFixture(t, 2)
	ctx := context.Background()
	f.publisher.fail(errors.New("nats down"))

	if err := f.processor.Record(ctx, newEvent()); err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.processor.Drain(ctx); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	if f.processor.Size() != 0 {
		t.Fatalf("entry should be dropped after max retries, size = %d", f.processor.Size())
	}
}

func TestBridgeRecordsThroughProcessor(t *testing.T) {
	f := newProcessorFixture(t, 3)
	bridge := NewOutboxBridge(f.processor, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bridge.Record(ctx, newEvent()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if f.logged(t) != 1 {
		t.Fatalf("a cancelled request context must not block recording, logged=%d", f.logged(t))
	}

	if err := NewOutboxBridge(nil, 0, nil).Record(context.Background(), newEvent()); err == nil {
		t.Fatal("expected error without processor")
	}
}

func TestSubSecondIntervalStillSchedulesDrain(t *testing.T) {
	box, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { box.Close() })

	p := NewOutboxProcessor(box, &switchHealth{online: true}, nil, nil, nil, ProcessorConfig{Interval: 200 * time.Millisecond})
	if p.cfg.Interval != time.Second {
		t.Fatalf("interval = %s, want 1s", p.cfg.Interval)
	}
	if n := len(p.cron.Entries()); n != 2 {
		t.Fatalf("scheduled jobs = %d, want drain and cleanup", n)
	}
}
