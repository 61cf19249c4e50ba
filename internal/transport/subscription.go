package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

const subscriptionBuffer = 256

// ErrSubscriptionQueueOverflow is delivered when a consumer falls too far behind.
var ErrSubscriptionQueueOverflow = errors.New("subscription queue overflow")

// Subscription is a live server-side subscription on a stream transport.
type Subscription struct {
	ID string

	namespace string
	m         *multiplexer
	out       chan<- json.RawMessage
	queue     chan json.RawMessage
	errc      chan error
	quit      chan struct{}
	once      sync.Once
}

func newSubscription(m *multiplexer, namespace string, out chan<- json.RawMessage) *Subscription {
	return &Subscription{
		namespace: namespace,
		m:         m,
		out:       out,
		queue:     make(chan json.RawMessage, subscriptionBuffer),
		errc:      make(chan error, 1),
		quit:      make(chan struct{}),
	}
}

// Err yields at most one error and is closed when the subscription ends.
func (s *Subscription) Err() <-chan error {
	return s.errc
}

// Unsubscribe stops delivery and asks the node to drop the subscription.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.m.unregister(s.ID)
	s.fail(nil)

	req := NewRequest(0, s.namespace+"_unsubscribe", s.ID)
	resp, err := s.m.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// deliver is called from the read loop and never blocks it.
func (s *Subscription) deliver(raw json.RawMessage) {
	select {
	case s.queue <- raw:
	case <-s.quit:
	default:
		s.m.unregister(s.ID)
		s.fail(ErrSubscriptionQueueOverflow)
	}
}

func (s *Subscription) forward() {
	for {
		select {
		case raw := <-s.queue:
			select {
			case s.out <- raw:
			case <-s.quit:
				return
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Subscription) fail(err error) {
	s.once.Do(func() {
		if err != nil {
			s.errc <- err
		}
		close(s.errc)
		close(s.quit)
	})
}
