package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMailboxFull is returned when too many undelivered messages share one
// source and tag.
var ErrMailboxFull = errors.New("mailbox full")

// mailboxDepth bounds the number of queued messages per (source, tag).
// Collectives send one message per tag, anything beyond that is a protocol
// error on the sender side.
const mailboxDepth = 8

type slotKey struct {
	src int
	tag Tag
}

// Mailbox is an inbox of messages addressed by source rank and tag. Messages
// may be delivered before the matching Recv is posted.
type Mailbox struct {
	mu     sync.Mutex
	slots  map[slotKey]chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		slots:  make(map[slotKey]chan []byte),
		closed: make(chan struct{}),
	}
}

// must be called with mu held.
func (m *Mailbox) slot(key slotKey) chan []byte {
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan []byte, mailboxDepth)
		m.slots[key] = ch
	}
	return ch
}

// Deliver queues msg from src under tag. It never blocks.
func (m *Mailbox) Deliver(src int, tag Tag, msg []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case m.slot(slotKey{src: src, tag: tag}) <- msg:
		return nil
	default:
		return fmt.Errorf("%w: source %d tag %d", ErrMailboxFull, src, tag)
	}
}

// Recv waits for the next message from src under tag.
func (m *Mailbox) Recv(ctx context.Context, src int, tag Tag) ([]byte, error) {
	key := slotKey{src: src, tag: tag}
	m.mu.Lock()
	ch := m.slot(key)
	m.mu.Unlock()
	select {
	case msg := <-ch:
		m.mu.Lock()
		if len(ch) == 0 && m.slots[key] == ch {
			delete(m.slots, key)
		}
		m.mu.Unlock()
		return msg, nil
	case <-m.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of (source, tag) pairs with queued or awaited
// messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Close wakes up all waiting receivers with ErrClosed.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.closed) })
}
