package reasoning

import "context"

// Loopback runs a Handler in-process.
type Loopback struct {
	handler Handler
}

// NewLoopback creates a transport backed by h.
func NewLoopback(h Handler) *Loopback {
	return &Loopback{handler: h}
}

// Send runs the handler and forwards its frames. A stream that ends without
// a done frame is closed with one.
func (l *Loopback) Send(ctx context.Context, req Request, sink Sink) error {
	var emitErr error
	done := false
	err := l.handler.Handle(ctx, req, func(f Frame) {
		if emitErr != nil || done {
			return
		}
		done = f.Done
		emitErr = sink.Emit(f)
	})
	if err != nil {
		return err
	}
	if emitErr != nil {
		return emitErr
	}
	if !done {
		return sink.Emit(Frame{Done: true})
	}
	return nil
}
