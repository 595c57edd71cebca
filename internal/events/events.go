// Package events is a small in-process publish/subscribe engine. Publishers
// register the event names they emit, subscribers hand over a channel, and a
// single dispatcher goroutine fans each event out until DoneCh closes.
// Neither side ever waits: a full queue or subscriber channel drops the event.
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Name string

const (
	OrderCreated       Name = "order.created"
	OrderPaid          Name = "order.paid"
	OrderStatusChanged Name = "order.status_changed"
)

type Event struct {
	Name    Name
	Payload any
}

type Subscriber struct {
	Name      string
	AddressCh chan<- any
}

var (
	ErrEngineStopped = errors.New("event engine stopped")
	ErrBusy          = errors.New("event queue is full")
)

type Publisher interface {
	Publish(event *Event) error
}

type Bus interface {
	Publisher
	RegisterEvents(names ...Name)
	Subscribe(to Name, subscriber *Subscriber) error
}

type Config struct {
	DoneCh        <-chan struct{}
	InternalSrvWG *sync.WaitGroup
	BufferSize    int
}

type subscribers struct {
	names      []string
	addressChs []chan<- any
}

type Engine struct {
	*Config
	mu      sync.RWMutex
	stopped bool
	ch      chan *Event
	events  map[Name]*subscribers
	log     *slog.Logger
}

// NewEngine starts the dispatcher. It stops, drains pending events and
// closes every subscriber channel once DoneCh is closed.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.DoneCh == nil || cfg.InternalSrvWG == nil {
		return nil, errors.New("events: DoneCh and InternalSrvWG are required")
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 20
	}

	e := &Engine{
		Config: cfg,
		ch:     make(chan *Event, size),
		events: make(map[Name]*subscribers, 8),
		log:    slog.With("component", "events"),
	}

	e.InternalSrvWG.Add(1)
	go e.listen()
	return e, nil
}

func (e *Engine) listen() {
	defer e.InternalSrvWG.Done()
	e.log.Debug("Event engine is listening")

	for {
		select {
		case <-e.DoneCh:
			e.mu.Lock()
			e.stopped = true
			e.mu.Unlock()

			e.drain()
			e.closeSubscribers()
			e.log.Info("Event engine stopped")
			return

		case ev := <-e.ch:
			e.broadcast(ev)
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.ch:
			e.broadcast(ev)
		default:
			return
		}
	}
}

func (e *Engine) broadcast(ev *Event) {
	e.mu.RLock()
	subs, ok := e.events[ev.Name]
	e.mu.RUnlock()
	if !ok {
		e.log.Warn("Dropping unregistered event", "event", ev.Name)
		return
	}
	for i, ch := range subs.addressChs {
		if ch == nil {
			e.log.Warn("Subscriber channel is nil", "subscriber", subs.names[i])
			continue
		}
		select {
		case ch <- ev.Payload:
		default:
			e.log.Warn("Subscriber is busy, dropping event", "event", ev.Name, "subscriber", subs.names[i])
		}
	}
}

// RegisterEvents declares the events a publisher may emit. Register an
// event before publishing or subscribing to it.
func (e *Engine) RegisterEvents(names ...Name) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		if _, exists := e.events[name]; exists {
			continue
		}
		e.events[name] = &subscribers{}
	}
	e.log.Debug("Registered events", "events", names)
}

func (e *Engine) Subscribe(to Name, s *Subscriber) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs, ok := e.events[to]
	if !ok {
		return fmt.Errorf("event %q is not registered", to)
	}
	subs.names = append(subs.names, s.Name)
	subs.addressChs = append(subs.addressChs, s.AddressCh)
	return nil
}

func (e *Engine) Publish(ev *Event) error {
	e.mu.RLock()
	stopped := e.stopped
	_, registered := e.events[ev.Name]
	e.mu.RUnlock()

	if stopped {
		return ErrEngineStopped
	}
	if !registered {
		return fmt.Errorf("event %q is not registered", ev.Name)
	}

	select {
	case e.ch <- ev:
		return nil
	case <-e.DoneCh:
		return ErrEngineStopped
	default:
		return ErrBusy
	}
}

// closeSubscribers closes each distinct channel once, even when a
// subscriber listens to several events on the same channel.
func (e *Engine) closeSubscribers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	closed := make(map[chan<- any]bool)
	for _, subs := range e.events {
		for _, ch := range subs.addressChs {
			if ch == nil || closed[ch] {
				continue
			}
			close(ch)
			closed[ch] = true
		}
	}
}
