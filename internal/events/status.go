package events

import (
	"sync"
	"time"
)

type Service string

const (
	ServiceAutomationEngine   Service = "automation_engine"
	ServiceGenerator          Service = "generator"
	ServiceEmail              Service = "email_service"
	ServiceApplicationService Service = "application_service"
)

type ServiceState string

const (
	StateRunning ServiceState = "running"
	StateStopped ServiceState = "stopped"
	StateError   ServiceState = "error"
)

var trackedServices = []Service{
	ServiceAutomationEngine,
	ServiceGenerator,
	ServiceEmail,
	ServiceApplicationService,
}

type ServiceStatus struct {
	State     ServiceState `json:"state"`
	Detail    string       `json:"detail,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

type SystemStatus struct {
	Services  map[Service]ServiceStatus `json:"services"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Healthy is true when no tracked service reports an error.
func (s SystemStatus) Healthy() bool {
	for _, st := range s.Services {
		if st.State == StateError {
			return false
		}
	}
	return true
}

type statusBoard struct {
	mu        sync.RWMutex
	services  map[Service]ServiceStatus
	updatedAt time.Time
}

func newStatusBoard() *statusBoard {
	b := &statusBoard{services: make(map[Service]ServiceStatus, len(trackedServices))}
	for _, s := range trackedServices {
		b.services[s] = ServiceStatus{State: StateStopped}
	}
	return b
}

func (b *statusBoard) apply(h HealthCheck, at time.Time) {
	if h.Service == "" {
		return
	}
	switch h.State {
	case StateRunning, StateStopped, StateError:
	default:
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services[h.Service] = ServiceStatus{State: h.State, Detail: h.Detail, CheckedAt: at}
	b.updatedAt = at
}

func (b *statusBoard) snapshot() SystemStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := SystemStatus{Services: make(map[Service]ServiceStatus, len(b.services)), UpdatedAt: b.updatedAt}
	for k, v := range b.services {
		out.Services[k] = v
	}
	return out
}
