package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	plog "github.com/prometheus/common/log"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

const (
	// MaxFrameSize is the soft cap of spec.md §4.1 on a single message.
	MaxFrameSize = 64 * 1024

	defaultDialTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
	defaultReadTimeout  = 3 * time.Second
)

// EncodeMessage writes msg as a single JSON object to w and enforces the
// soft frame cap of spec.md §4.1, failing the sender on overflow rather
// than silently truncating.
func EncodeMessage(w io.Writer, msg types.Message) error {
	bts, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("robovote: encode message: %w", err)
	}
	if len(bts) > MaxFrameSize {
		return types.ErrMessageTooLarge
	}
	_, err = w.Write(bts)
	return err
}

// DecodeMessage reads until EOF (spec.md §4.1's "no framing header, EOF
// delimits") and parses the bytes as a single Message, capped at
// MaxFrameSize+1 bytes so a runaway sender can't exhaust memory.
func DecodeMessage(r io.Reader) (types.Message, error) {
	limited := io.LimitReader(r, MaxFrameSize+1)
	bts, err := io.ReadAll(limited)
	if err != nil {
		return types.Message{}, fmt.Errorf("%w: %v", types.ErrDeserialization, err)
	}
	if len(bts) > MaxFrameSize {
		return types.Message{}, types.ErrMessageTooLarge
	}
	var msg types.Message
	if err := json.Unmarshal(bts, &msg); err != nil {
		return types.Message{}, fmt.Errorf("%w: %v", types.ErrDeserialization, err)
	}
	return msg, nil
}

// Jitter is the pre-connect pause of spec.md §5: "the reference pauses
// briefly before every outbound connect". Kept configurable (rather than
// original_source/robot.py's hardcoded 3s) so tests don't pay a multi-hop
// tax against the default 30s fleet deadline.
type Jitter func() time.Duration

// FixedJitter always sleeps d, matching the reference's behavior at d=3s.
func FixedJitter(d time.Duration) Jitter {
	return func() time.Duration { return d }
}

// RandomJitter sleeps a uniformly random duration in [0, max).
func RandomJitter(max time.Duration) Jitter {
	return func() time.Duration {
		if max <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(max)))
	}
}

// NoJitter never sleeps, for tests that want determinism over fidelity.
func NoJitter() time.Duration { return 0 }

// dialFunc is the seam that lets tests inject a fake network.
type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

func defaultDial(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// Sender is the outbound half of spec.md §4.5: resolve the endpoint,
// connect, write the framed message, close. On failure it invokes repair
// and recursively retries against the repaired successor.
type Sender struct {
	Membership  *Membership
	Self        types.RobotID
	SelfHost    string
	SelfPort    int
	Jitter      Jitter
	DialTimeout time.Duration
	Log         types.Logger
	Dial        dialFunc

	// Repair runs the failure-detector/ring-repair protocol of spec.md
	// §4.6 against the observed-dead peer and returns the new successor
	// candidate to retry against, or ErrAloneInRing if the repair walk
	// came back to Self.
	Repair func(dead types.RobotID) (types.RobotID, error)
}

// NewSender builds a Sender with production defaults.
func NewSender(membership *Membership, self types.RobotID, host string, port int, log types.Logger) *Sender {
	return &Sender{
		Membership:  membership,
		Self:        self,
		SelfHost:    host,
		SelfPort:    port,
		Jitter:      FixedJitter(0),
		DialTimeout: defaultDialTimeout,
		Log:         log,
		Dial:        defaultDial,
	}
}

func (s *Sender) dial(target types.RobotID) (net.Conn, error) {
	if s.Jitter != nil {
		time.Sleep(s.Jitter())
	}
	endpoint, err := s.Membership.Lookup(target)
	if err != nil {
		return nil, err
	}
	dial := s.Dial
	if dial == nil {
		dial = defaultDial
	}
	conn, err := dial("tcp", endpoint.String(), s.DialTimeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// write performs the single connect-write-close exchange against target,
// with no repair-on-failure: used by Ping, where the caller (repair.go)
// interprets any error as "dead" directly.
func (s *Sender) write(target types.RobotID, msg types.Message) error {
	conn, err := s.dial(target)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	return EncodeMessage(conn, msg)
}

// Ping probes target's liveness: connect, write a ping, close. A
// successful connect+write is "alive" per spec.md §4.6 step 3a; the
// caller never reads a reply.
func (s *Sender) Ping(target types.RobotID) error {
	ping := types.Message{Type: types.KindPing}.WithSender(s.Self, s.SelfHost, s.SelfPort)
	return s.write(target, ping)
}

// SendToSuccessor sends msg to Self's current successor, repairing and
// retrying on failure exactly as spec.md §4.5 describes.
func (s *Sender) SendToSuccessor(msg types.Message) error {
	target, err := s.Membership.SuccessorOf(s.Self)
	if err != nil {
		return s.recoverAndRetry(s.Self, msg, err)
	}
	return s.sendTo(target, msg)
}

func (s *Sender) sendTo(target types.RobotID, msg types.Message) error {
	err := s.write(target, msg)
	if err == nil {
		return nil
	}
	if s.Log != nil {
		s.Log.Warnf("send to %d failed: %v, running repair", target, err)
	}
	plog.Warnf("robovote: send to peer %d failed: %v", target, err)
	return s.recoverAndRetry(target, msg, err)
}

func (s *Sender) recoverAndRetry(dead types.RobotID, msg types.Message, cause error) error {
	if s.Repair == nil {
		return cause
	}
	candidate, err := s.Repair(dead)
	if err != nil {
		return err
	}
	return s.sendTo(candidate, msg)
}

// SendDirect sends msg to target without any repair-on-failure, used for
// the best-effort shutdown fan-out of spec.md §4.7 (a dead peer there is
// simply skipped, not repaired around).
func (s *Sender) SendDirect(target types.RobotID, msg types.Message, timeout time.Duration) error {
	conn, err := s.dialWithTimeout(target, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(timeout))
	return EncodeMessage(conn, msg)
}

func (s *Sender) dialWithTimeout(target types.RobotID, timeout time.Duration) (net.Conn, error) {
	endpoint, err := s.Membership.Lookup(target)
	if err != nil {
		return nil, err
	}
	dial := s.Dial
	if dial == nil {
		dial = defaultDial
	}
	return dial("tcp", endpoint.String(), timeout)
}
