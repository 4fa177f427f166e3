package jsonrpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadyResponded is returned by Send and Close once a reply was sent
	// or the responder was closed.
	ErrAlreadyResponded = errors.New("jsonrpc: response already sent")
	// ErrReceiverGone is returned by Send when the caller stopped waiting.
	ErrReceiverGone = errors.New("jsonrpc: receiver is gone")
	// ErrResponderClosed is returned by Recv when the responder was closed
	// without a reply.
	ErrResponderClosed = errors.New("jsonrpc: responder closed without a reply")
)

// Result is either a value or a destination-specific error.
type Result[E any] struct {
	Value  any
	Err    E
	Failed bool
}

// Ok wraps a successful value.
func Ok[E any](value any) Result[E] {
	return Result[E]{Value: value}
}

// Fail wraps a destination error.
func Fail[E any](err E) Result[E] {
	return Result[E]{Err: err, Failed: true}
}

// Responder is the sending half of a reply channel. It can be shared by any
// number of goroutines, but only the first Send or Close takes effect; the
// handle is spent afterwards. Sending never blocks.
type Responder[E any] struct {
	ch    chan Result[E]
	spent atomic.Bool
	gone  chan struct{}
}

// Receiver is the receiving half of a reply channel, owned by the caller
// waiting for the reply.
type Receiver[E any] struct {
	ch       <-chan Result[E]
	gone     chan struct{}
	goneOnce sync.Once
}

// NewResponder creates a connected responder/receiver pair.
func NewResponder[E any]() (*Responder[E], *Receiver[E]) {
	ch := make(chan Result[E], 1)
	gone := make(chan struct{})
	return &Responder[E]{ch: ch, gone: gone}, &Receiver[E]{ch: ch, gone: gone}
}

// Send delivers the one reply.
func (r *Responder[E]) Send(res Result[E]) error {
	if !r.spent.CompareAndSwap(false, true) {
		return ErrAlreadyResponded
	}
	defer close(r.ch)

	select {
	case <-r.gone:
		return ErrReceiverGone
	default:
	}
	// Capacity is one and only the winner of the swap gets here.
	r.ch <- res
	return nil
}

// Ok sends a successful reply.
func (r *Responder[E]) Ok(value any) error {
	return r.Send(Ok[E](value))
}

// Fail sends an error reply.
func (r *Responder[E]) Fail(err E) error {
	return r.Send(Fail(err))
}

// Close gives up without a reply; the receiver sees ErrResponderClosed.
func (r *Responder[E]) Close() error {
	if !r.spent.CompareAndSwap(false, true) {
		return ErrAlreadyResponded
	}
	close(r.ch)
	return nil
}

// Spent reports whether a reply was sent or the responder was closed.
func (r *Responder[E]) Spent() bool {
	return r.spent.Load()
}

// Abandoned reports whether the receiver stopped waiting. Destinations may use
// it as a hint to drop in-flight work.
func (r *Responder[E]) Abandoned() bool {
	select {
	case <-r.gone:
		return true
	default:
		return false
	}
}

// Recv waits for the reply. It returns ErrResponderClosed when the responder
// was closed without one, or ctx.Err() when ctx ends first.
func (r *Receiver[E]) Recv(ctx context.Context) (Result[E], error) {
	select {
	case res, ok := <-r.ch:
		if !ok {
			return Result[E]{}, ErrResponderClosed
		}
		return res, nil
	case <-ctx.Done():
		return Result[E]{}, ctx.Err()
	}
}

// Close tells the responder side nobody is waiting any more.
func (r *Receiver[E]) Close() {
	r.goneOnce.Do(func() { close(r.gone) })
}
