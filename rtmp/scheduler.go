// Scheduler combinators: chain, while_ok, wrap, map_err.
//
// The original design (§4.6/§9) models connections as poll-based tasks
// suspending at I/O boundaries. Go's goroutines already give every
// connection its own cooperatively-scheduled stack with suspension at I/O,
// so there is no separate poll-function FSM to write here (the teacher's
// HandleSession is exactly this: one goroutine per connection, blocking
// calls). What the spec actually needs out of this section is the
// *composition* of handlers, which is what this file provides: plain
// functions over error, composed the same way the spec names them, so the
// client and server packages read as chain(header, while_ok(...)) rather
// than a hand-unrolled sequence of if-err-return blocks.

package rtmp

// Handler is one step of a connection's protocol: it runs to completion (or
// suspends only on its own I/O, which in this Go rendering just means it
// blocks) and returns an error. A nil error is success.
type Handler func() error

// Chain runs a to completion, then b, surfacing the first error.
func Chain(a, b Handler) Handler {
	return func() error {
		if err := a(); err != nil {
			return err
		}
		return b()
	}
}

// ChainAll is Chain generalized over any number of handlers, in order.
func ChainAll(handlers ...Handler) Handler {
	return func() error {
		for _, h := range handlers {
			if err := h(); err != nil {
				return err
			}
		}
		return nil
	}
}

// WhileOk runs header once, then repeatedly runs body until it returns a
// terminal error. This is how media is pumped after setup: header does
// nothing or primes state, body reads/writes one unit of work per call.
func WhileOk(header, body Handler) Handler {
	return func() error {
		if header != nil {
			if err := header(); err != nil {
				return err
			}
		}
		for {
			if err := body(); err != nil {
				return err
			}
		}
	}
}

// Wrap runs middleware around inner: middleware observes inner's execution
// by calling the inner handler itself, letting it inspect state (e.g. byte
// counts) before and after. Used for the acknowledgement emitter, which
// wraps the command+media loop and only needs to run its own check after
// each inner pass.
func Wrap(middleware func(inner Handler) error, inner Handler) Handler {
	return func() error {
		return middleware(inner)
	}
}

// MapErr runs inner; if it fails with a recoverable kind (anything but
// KindOther or KindStreamExhausted, which mark a clean connection-closed/
// stream-exhausted condition and are returned unchanged), recovery runs to
// emit teardown commands and shut down.
// recovery receives the triggering error so it can inspect info objects
// for protocol-status failures.
func MapErr(inner Handler, recovery func(err error) error) Handler {
	return func() error {
		err := inner()
		if err == nil {
			return nil
		}
		if IsKind(err, KindOther) || IsKind(err, KindStreamExhausted) {
			return err
		}
		return recovery(err)
	}
}
