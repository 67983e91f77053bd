package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"looprig/internal/logging"
)

// Server accepts sessions on a listener, one at a time.
type Server struct {
	Variant Variant
	// Responder produces replies for the iterative variant. Nil means
	// AckResponder.
	Responder Responder
	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State)
	// OnSession, if set, is called after each session has been closed.
	OnSession func(SessionResult)

	state atomic.Int32
}

// State returns the current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

func (s *Server) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	logging.New("solver").Debug("state", "from", from, "to", to)
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}

// Serve runs sessions on ln until the variant is done or ctx is cancelled,
// then closes ln. It returns nil on a clean stop and an error only when
// accepting fails for another reason. The Server is Terminated afterwards.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := logging.New("solver")
	variant := s.Variant
	if variant == "" {
		variant = Iterative
	}
	s.state.Store(int32(Listening))
	logger.Info("listening", "addr", ln.Addr().String(), "variant", string(variant))

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
		}
		return ln.Close()
	})
	g.Go(func() error {
		defer close(done)
		return s.loop(gctx, ln, variant, logger)
	})
	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	s.transition(Terminated)
	logger.Info("terminated")
	return err
}

func (s *Server) loop(ctx context.Context, ln net.Listener, variant Variant, logger *slog.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.transition(SessionActive)
		logger.Info("connected", "remote", conn.RemoteAddr().String())

		var res SessionResult
		if variant == SingleShot {
			res = s.drain(ctx, conn, logger)
		} else {
			res = s.answer(ctx, conn, logger)
		}
		_ = conn.Close()
		if res.Err != nil {
			logger.Warn("session ended with error", "remote", res.Remote, "error", res.Err)
		}
		if s.OnSession != nil {
			s.OnSession(res)
		}
		if variant == SingleShot {
			return nil
		}
		s.transition(Listening)
	}
}

// unblockOnCancel makes pending I/O on conn fail once ctx is done.
func unblockOnCancel(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
}

// answer is one iterative session: a single bounded read, then the reply.
func (s *Server) answer(ctx context.Context, conn net.Conn, logger *slog.Logger) SessionResult {
	defer unblockOnCancel(ctx, conn)()
	res := SessionResult{Remote: conn.RemoteAddr().String()}

	buf := make([]byte, MaxRequest+1)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		res.Err = &SessionError{Remote: res.Remote, Op: "read", Err: err}
		return res
	}
	if n > MaxRequest {
		n = MaxRequest
		res.Truncated = true
		logger.Warn("request truncated", "remote", res.Remote, "limit", MaxRequest)
	}
	res.Request = buf[:n]
	if !utf8.Valid(res.Request) {
		res.Err = ErrInvalidUTF8
	}
	logger.Info("received", "remote", res.Remote, "data", res.Text())

	responder := s.Responder
	if responder == nil {
		responder = AckResponder{}
	}
	reply, err := responder.Respond(res.Request)
	if err != nil {
		res.Err = errors.Join(res.Err, &SessionError{Remote: res.Remote, Op: "respond", Err: err})
		return res
	}
	if _, err := conn.Write(reply); err != nil {
		res.Err = errors.Join(res.Err, &SessionError{Remote: res.Remote, Op: "write", Err: err})
		return res
	}
	res.Reply = reply
	return res
}

// drain is the single-shot session: read chunks until the peer closes.
func (s *Server) drain(ctx context.Context, conn net.Conn, logger *slog.Logger) SessionResult {
	defer unblockOnCancel(ctx, conn)()
	res := SessionResult{Remote: conn.RemoteAddr().String()}

	buf := make([]byte, MaxRequest)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logger.Info("received", "remote", res.Remote, "data", string(buf[:n]))
			res.Request = append(res.Request, buf[:n]...)
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			res.Err = &SessionError{Remote: res.Remote, Op: "read", Err: err}
			return res
		}
	}
	if !utf8.Valid(res.Request) {
		res.Err = ErrInvalidUTF8
	}
	return res
}
