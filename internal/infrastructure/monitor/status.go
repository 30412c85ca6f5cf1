package monitor

import "time"

type ComponentStatus struct {
	Online   bool   `json:"online"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type Status struct {
	Components map[string]ComponentStatus `json:"components"`
	OutboxSize int                        `json:"outbox_size"`
	LastCheck  time.Time                  `json:"last_check"`
}

// Healthy is true when every critical component answered. A status that was
// never refreshed is not healthy.
func (s Status) Healthy() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, c := range s.Components {
		if c.Critical && !c.Online {
			return false
		}
	}
	return true
}

// Online reports a single component; unknown components are offline.
func (s Status) Online(name string) bool {
	return s.Components[name].Online
}
