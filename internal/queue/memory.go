package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"reelpull/internal/jobs"
	"reelpull/internal/tier"
)

// Memory is an in-process Backend. Payloads are JSON-encoded on the way in so
// requests behave exactly as they would after a broker round trip.
type Memory struct {
	mu      sync.Mutex
	lists   map[tier.Tier][][]byte
	signals map[tier.Tier]chan struct{}
	closed  bool
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	m := &Memory{
		lists:   make(map[tier.Tier][][]byte),
		signals: make(map[tier.Tier]chan struct{}),
	}
	for _, t := range tier.All {
		m.signals[t] = make(chan struct{}, 1)
	}
	return m
}

var errClosed = errors.New("memory backend closed")

// Ping implements Backend.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("ping", errClosed)
	}
	return nil
}

// Enqueue implements Backend.
func (m *Memory) Enqueue(_ context.Context, t tier.Tier, req jobs.Request) error {
	return m.push("enqueue", t, req, false)
}

// Requeue implements Backend.
func (m *Memory) Requeue(_ context.Context, t tier.Tier, req jobs.Request) error {
	return m.push("requeue", t, req, true)
}

func (m *Memory) push(op string, t tier.Tier, req jobs.Request, front bool) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return unavailable(op, errClosed)
	}
	if front {
		m.lists[t] = append([][]byte{payload}, m.lists[t]...)
	} else {
		m.lists[t] = append(m.lists[t], payload)
	}
	signal := m.signals[t]
	m.mu.Unlock()
	if signal != nil {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
	return nil
}

// Dequeue implements Backend.
func (m *Memory) Dequeue(ctx context.Context, t tier.Tier, block time.Duration) (*jobs.Request, error) {
	timer := time.NewTimer(block)
	defer timer.Stop()
	for {
		payload, signal, err := m.pop(t)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return decodeRequest(payload)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-signal:
		}
	}
}

func (m *Memory) pop(t tier.Tier) ([]byte, chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, unavailable("dequeue", errClosed)
	}
	list := m.lists[t]
	if len(list) == 0 {
		return nil, m.signals[t], nil
	}
	payload := list[0]
	m.lists[t] = list[1:]
	if len(m.lists[t]) > 0 {
		select {
		case m.signals[t] <- struct{}{}:
		default:
		}
	}
	return payload, nil, nil
}

// Len implements Backend.
func (m *Memory) Len(_ context.Context, t tier.Tier) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, unavailable("len", errClosed)
	}
	return int64(len(m.lists[t])), nil
}

// Close implements Backend. Subsequent calls report ErrUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
