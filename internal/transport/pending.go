package transport

import "sync"

// pendingCall is the continuation for one in-flight request.
type pendingCall struct {
	ch  chan *Response
	sub *Subscription
}

// pendingTable correlates request ids with waiting callers. Safe for
// concurrent use by senders and the read loop.
type pendingTable struct {
	mu    sync.Mutex
	calls map[uint64]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[uint64]*pendingCall)}
}

func (p *pendingTable) add(id uint64, sub *Subscription) (*pendingCall, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		return nil, ErrClosed
	}
	if _, ok := p.calls[id]; ok {
		return nil, ErrDuplicateID
	}
	call := &pendingCall{ch: make(chan *Response, 1), sub: sub}
	p.calls[id] = call
	return call, nil
}

// take removes and returns the entry for id, if any.
func (p *pendingTable) take(id uint64) (*pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return call, ok
}

func (p *pendingTable) remove(id uint64) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// closeAll wakes every waiter with a closed channel and refuses new entries.
func (p *pendingTable) closeAll() {
	p.mu.Lock()
	calls := p.calls
	p.calls = nil
	p.mu.Unlock()
	for _, call := range calls {
		close(call.ch)
	}
}
