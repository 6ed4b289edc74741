package transport

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// ErrBusClosed is returned when publishing to or subscribing on a closed
// bus.
var ErrBusClosed = errors.New("transport: bus is closed")

// Handler consumes one message. Handlers on a subscription are invoked
// sequentially from a single dispatcher goroutine; a slow handler causes
// newer messages to overwrite older undelivered ones.
type Handler func(msg Headed)

// Stats counts delivery outcomes for one subscription.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Bus is a topic-addressed in-process pub/sub with a depth-1 latest-value
// slot per subscription.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*Subscription
	closed    bool
	activeBg  sync.WaitGroup
	published uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[string][]*Subscription{}}
}

// Subscribe registers a handler on a topic and starts its dispatcher. The
// subscription holds at most one undelivered message at a time.
func (b *Bus) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("transport: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &Subscription{
		topic:  topic,
		bus:    b,
		holder: newLatestHolder(),
	}
	b.subs[topic] = append(b.subs[topic], sub)
	b.activeBg.Add(1)
	goutils.PanicCapturingGo(func() {
		defer b.activeBg.Done()
		for {
			msg, ok := sub.holder.next()
			if !ok {
				return
			}
			atomic.AddUint64(&sub.stats.Sent, 1)
			handler(msg)
		}
	})
	return sub, nil
}

// Publish places the message into every subscription slot on the topic,
// overwriting any undelivered message. It never blocks on consumers.
func (b *Bus) Publish(topic string, msg Headed) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	atomic.AddUint64(&b.published, 1)
	for _, sub := range b.subs[topic] {
		if overwrote := sub.holder.set(msg); overwrote {
			atomic.AddUint64(&sub.stats.Dropped, 1)
		}
	}
	return nil
}

// Published returns the total number of messages accepted by the bus.
func (b *Bus) Published() uint64 {
	return atomic.LoadUint64(&b.published)
}

// Close shuts down the bus and waits for all dispatchers to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.holder.close()
		}
	}
	b.subs = nil
	b.mu.Unlock()
	b.activeBg.Wait()
}

// Subscription is one registered handler on a topic.
type Subscription struct {
	topic  string
	bus    *Bus
	holder *latestHolder
	stats  Stats
}

// Stats returns delivery counts for this subscription.
func (s *Subscription) Stats() Stats {
	return Stats{
		Sent:    atomic.LoadUint64(&s.stats.Sent),
		Dropped: atomic.LoadUint64(&s.stats.Dropped),
	}
}

// Close stops the subscription's dispatcher. Messages already overwritten
// are lost; that is the contract.
func (s *Subscription) Close() {
	s.holder.close()
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.bus.closed {
		return
	}
	subs := s.bus.subs[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// latestHolder is a depth-1 slot where a newer value overwrites an older
// undelivered one.
type latestHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	msg    Headed
	has    bool
	closed bool
}

func newLatestHolder() *latestHolder {
	h := &latestHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// set stores the value, reporting whether an undelivered value was
// overwritten.
func (h *latestHolder) set(msg Headed) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	overwrote := h.has
	h.msg = msg
	h.has = true
	h.cond.Signal()
	return overwrote
}

// next blocks until a value or close.
func (h *latestHolder) next() (Headed, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for !h.has && !h.closed {
		h.cond.Wait()
	}
	if !h.has {
		return nil, false
	}
	msg := h.msg
	h.msg = nil
	h.has = false
	return msg, true
}

func (h *latestHolder) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.msg = nil
	h.has = false
	h.cond.Broadcast()
}
