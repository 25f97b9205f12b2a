package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Gunvolt24/dispatch_bench/internal/ports"
	"github.com/Gunvolt24/dispatch_bench/pkg/metrics"
)

// ErrInvalidTransition - переход между состояниями сессии не разрешён.
var ErrInvalidTransition = errors.New("dispatch: invalid state transition")

// State - состояние сессии.
type State int

const (
	StateCreated State = iota
	StateSubscribed
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubscribed:
		return "subscribed"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// allowed - разрешённые переходы. Created → Closed только при ошибке подписки.
var allowed = map[State][]State{
	StateCreated:    {StateSubscribed, StateClosed},
	StateSubscribed: {StateRunning},
	StateRunning:    {StateDraining},
	StateDraining:   {StateClosed},
}

type stateMachine struct {
	mu      sync.Mutex
	current State
	history []State
	topic   string
	log     ports.Logger
}

func newStateMachine(topic string, log ports.Logger) *stateMachine {
	metrics.SessionState.WithLabelValues(topic).Set(float64(StateCreated))
	return &stateMachine{
		current: StateCreated,
		history: []State{StateCreated},
		topic:   topic,
		log:     log,
	}
}

func (m *stateMachine) state() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// visited - пройденные состояния по порядку.
func (m *stateMachine) visited() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

func (m *stateMachine) transition(ctx context.Context, to State) error {
	m.mu.Lock()
	from := m.current
	ok := false
	for _, s := range allowed[from] {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.current = to
	m.history = append(m.history, to)
	m.mu.Unlock()

	metrics.SessionState.WithLabelValues(m.topic).Set(float64(to))
	m.log.Infof(ctx, "dispatch session %s -> %s topic=%s", from, to, m.topic)
	return nil
}
