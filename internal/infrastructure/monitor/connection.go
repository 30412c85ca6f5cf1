package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Component names used by the server.
const (
	ComponentStorage = "storage"
	ComponentRedis   = "redis"
	ComponentNATS    = "nats"
	ComponentOutbox  = "outbox"
)

// Check probes one dependency. Ping returns nil when it is reachable.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Ping     func(ctx context.Context) error
}

// Sizer reports the number of queued outbox entries.
type Sizer interface {
	Size() (int, error)
}

type Monitor struct {
	checks []Check
	outbox Sizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(checks []Check, outbox Sizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		outbox:   outbox,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline is true while every critical dependency is reachable.
func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Components: make(map[string]ComponentStatus, len(m.checks)+1),
	}
	for _, check := range m.checks {
		status.Components[check.Name] = m.run(ctx, check)
	}
	if m.outbox != nil {
		size, err := m.outbox.Size()
		component := ComponentStatus{Online: err == nil}
		if err != nil {
			m.logger.Warn("outbox size check failed", zap.Error(err))
			component.Error = err.Error()
		}
		status.Components[ComponentOutbox] = component
		status.OutboxSize = size
	}
	status.LastCheck = time.Now().UTC()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	for name, component := range status.Components {
		if was, ok := previous.Components[name]; ok && was.Online && !component.Online {
			m.logger.Warn("dependency went offline", zap.String("component", name), zap.String("error", component.Error))
		}
	}
	return status
}

func (m *Monitor) run(ctx context.Context, check Check) ComponentStatus {
	result := ComponentStatus{Critical: check.Critical}
	if check.Ping == nil {
		result.Error = "not configured"
		return result
	}
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := check.Ping(pingCtx); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Online = true
	return result
}
