package comm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMailboxDeliverBeforeRecv(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Deliver(1, 7, []byte("a")))
	require.NoError(t, m.Deliver(1, 7, []byte("b")))
	require.NoError(t, m.Deliver(2, 7, []byte("c")))

	msg, err := m.Recv(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), msg)
	msg, err = m.Recv(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), msg)
	require.Equal(t, 1, m.Pending())

	msg, err = m.Recv(context.Background(), 2, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("c"), msg)
	require.Zero(t, m.Pending())
}

func TestMailboxRecvBeforeDeliver(t *testing.T) {
	m := NewMailbox()
	got := make(chan []byte, 1)
	go func() {
		msg, err := m.Recv(context.Background(), 0, 1)
		if err == nil {
			got <- msg
		}
	}()
	require.Eventually(t, func() bool { return m.Pending() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, m.Deliver(0, 1, []byte("late")))
	select {
	case msg := <-got:
		require.Equal(t, []byte("late"), msg)
	case <-time.After(time.Second):
		require.FailNow(t, "message not received")
	}
}

func TestMailboxFull(t *testing.T) {
	m := NewMailbox()
	for range mailboxDepth {
		require.NoError(t, m.Deliver(0, 0, nil))
	}
	require.ErrorIs(t, m.Deliver(0, 0, nil), ErrMailboxFull)
}

func TestMailboxCancelAndClose(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Recv(ctx, 0, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	m.Close()
	m.Close()
	_, err = m.Recv(context.Background(), 0, 0)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, m.Deliver(0, 0, nil), ErrClosed)
}
