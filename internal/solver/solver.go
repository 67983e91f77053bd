// Package solver is the TCP service analysis runs send constraint-solving
// requests to, plus the client side of that exchange.
package solver

import (
	"errors"
	"fmt"
	"strings"
)

// MaxRequest is the largest request the service reads in one session. Longer
// requests are cut at this size.
const MaxRequest = 1024

// Ack is the fixed reply the iterative service sends.
const Ack = "DONE\n"

// ErrInvalidUTF8 marks a session whose request did not decode as UTF-8. The
// reply is still sent.
var ErrInvalidUTF8 = errors.New("request is not valid UTF-8")

// State is the lifecycle position of a Server.
type State int32

const (
	Listening State = iota
	SessionActive
	Terminated
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case SessionActive:
		return "session-active"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Variant selects the session lifecycle.
type Variant string

const (
	// Iterative serves sessions one after another, replying Ack to each.
	Iterative Variant = "iterative"
	// SingleShot serves one session, reads it to the end without replying,
	// then terminates.
	SingleShot Variant = "single-shot"
)

// ParseVariant accepts the names used on the command line and in config.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case Iterative, SingleShot:
		return v, nil
	case "":
		return Iterative, nil
	}
	return "", fmt.Errorf("unknown solver variant %q (expected %s|%s)", s, Iterative, SingleShot)
}

// SessionError is an I/O failure inside one session. It ends that session
// only.
type SessionError struct {
	Remote string
	Op     string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.Remote, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// SessionResult describes one finished session.
type SessionResult struct {
	Remote    string
	Request   []byte
	Truncated bool
	Reply     []byte
	Err       error
}

// Text is the request decoded as UTF-8, with invalid bytes replaced.
func (r SessionResult) Text() string {
	return strings.ToValidUTF8(string(r.Request), "�")
}

// Responder produces the reply for a request.
type Responder interface {
	Respond(req []byte) ([]byte, error)
}

// AckResponder answers every request with Ack.
type AckResponder struct{}

func (AckResponder) Respond([]byte) ([]byte, error) { return []byte(Ack), nil }
