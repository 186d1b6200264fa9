package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ringfleet/robovote/pkg/robovote/definition"
	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// MetricsSink is the narrow, writes-only observability seam of spec.md
// §1's "metrics accumulator... pure observability — writes only"
// exclusion. definition.Metrics implements it; core never reads it back.
type MetricsSink interface {
	IncVote(forVote bool)
	IncAction()
	IncRepair()
	Flush() error
}

type noopMetrics struct{}

func (noopMetrics) IncVote(bool) {}
func (noopMetrics) IncAction()    {}
func (noopMetrics) IncRepair()    {}
func (noopMetrics) Flush() error  { return nil }

// NoopMetrics is a MetricsSink that discards everything, used where a
// caller has no real sink wired up (unit tests, mostly).
var NoopMetrics MetricsSink = noopMetrics{}

// Peer is the per-message-kind state machine of spec.md §4.4, bundled
// with the poll loop that serializes its inbound processing. Grounded on
// pkg/mcast/core/peer.go's Peer: a single goroutine drains one channel fed
// by the transport, the same shape as that file's poll()/process() split.
type Peer struct {
	Self     types.RobotID
	Host     string
	Port     int

	Membership *Membership
	Timer      *ConsensusTimer
	Sender     *Sender
	Repairer   *Repairer
	VotePolicy VotePolicy
	Log        types.Logger
	Metrics    MetricsSink

	// Perform simulates the opaque "perform(action)" hook of spec.md §1:
	// a nonzero-duration physical action. Defaults to a short sleep.
	Perform func(types.Topic)

	// CloseListener stops the inbound server from accepting further
	// connections; wired by whoever constructs the Peer alongside its
	// InboundServer.
	CloseListener func()

	inbound chan types.Message
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	exitCode int
	done     bool
}

// NewPeer wires up a Peer ready to Run. The caller is responsible for
// constructing the Membership/Timer/Sender/Repairer/VotePolicy and wiring
// Sender.Repair to Repairer.Run.
func NewPeer(self types.RobotID, host string, port int, membership *Membership, timer *ConsensusTimer, sender *Sender, repairer *Repairer, policy VotePolicy, log types.Logger, metrics MetricsSink) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	if metrics == nil {
		metrics = NoopMetrics
	}
	p := &Peer{
		Self:       self,
		Host:       host,
		Port:       port,
		Membership: membership,
		Timer:      timer,
		Sender:     sender,
		Repairer:   repairer,
		VotePolicy: policy,
		Log:        log,
		Metrics:    metrics,
		Perform:    func(types.Topic) { time.Sleep(10 * time.Millisecond) },
		inbound:    make(chan types.Message, 8),
		ctx:        ctx,
		cancel:     cancel,
	}
	return p
}

// Deliver enqueues an inbound message for serialized processing; called by
// the InboundServer's connection handlers.
func (p *Peer) Deliver(msg types.Message) {
	select {
	case <-p.ctx.Done():
		return
	case p.inbound <- msg:
	}
}

// Done reports the channel that closes once the peer has terminated,
// under any of the four lifecycle paths of spec.md §3.
func (p *Peer) Done() <-chan struct{} { return p.ctx.Done() }

// ExitCode returns the process exit code this peer concluded with: 0 for
// a graceful shutdown, 1 for a fatal path (alone in ring).
func (p *Peer) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Run drives the poll loop until the peer terminates. It is meant to run
// on its own goroutine alongside the InboundServer's Serve loop and the
// timer watchdog started by RunWatchdog.
func (p *Peer) Run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-p.inbound:
			if !ok {
				return
			}
			p.process(msg)
		}
	}
}

// RunWatchdog checks the consensus deadline once per interval and starts a
// graceful shutdown once it has expired. It is the only place the peer
// checks the deadline: Run, the inbound server and the sender do not.
func (p *Peer) RunWatchdog(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case now := <-ticker.C:
			if p.Timer.Expired(now) {
				p.GracefulShutdown()
				return
			}
		}
	}
}

// process implements spec.md §4.4's dispatch table, then sends whatever
// outbound message the handler produced before reacting to its
// termination signal — preserving the "emit action before scheduling
// shutdown" ordering spec.md §9 requires.
func (p *Peer) process(msg types.Message) {
	out, pendingShutdown, receivedShutdown := p.dispatch(msg)

	if out != nil {
		if err := p.Sender.SendToSuccessor(*out); err != nil {
			if errors.Is(err, types.ErrAloneInRing) {
				p.fatalTerminate(1)
				return
			}
			if p.Log != nil {
				p.Log.Errorf("peer %d: failed forwarding %s: %v", p.Self, out.Type, err)
			}
		}
	}

	if pendingShutdown {
		p.GracefulShutdown()
		return
	}
	if receivedShutdown {
		return
	}
}

func (p *Peer) dispatch(msg types.Message) (out *types.Message, pendingShutdown bool, receivedShutdown bool) {
	if err := definition.CheckCompatible(msg.ProtocolVersion); err != nil {
		if p.Log != nil {
			p.Log.Warnf("peer %d: dropping message from %d: %v", p.Self, msg.SenderID, err)
		}
		return nil, false, false
	}

	switch msg.Type {
	case types.KindPoll:
		return p.handlePoll(msg)
	case types.KindAction:
		return p.handleAction(msg)
	case types.KindUpdate:
		return p.handleUpdate(msg)
	case types.KindPing:
		if p.Log != nil {
			p.Log.Debugf("peer %d: ping from %d", p.Self, msg.SenderID)
		}
		return nil, false, false
	case types.KindShutdown:
		if p.Log != nil {
			p.Log.Infof("peer %d: shutdown received from %d", p.Self, msg.SenderID)
		}
		p.terminateLocal(0)
		return nil, false, true
	default:
		if p.Log != nil {
			p.Log.Warnf("peer %d: unknown message kind %q", p.Self, msg.Type)
		}
		return nil, false, false
	}
}

// handlePoll implements the voting rules of spec.md §4.4.
func (p *Peer) handlePoll(msg types.Message) (*types.Message, bool, bool) {
	if msg.StartTime != 0 {
		p.Timer.Adopt(unixToTime(msg.StartTime))
	}

	if p.Self == msg.InitiatorID {
		out := msg.WithSender(p.Self, p.Host, p.Port)
		return &out, false, false
	}

	forVote := p.VotePolicy.Decide(msg)
	if forVote {
		msg.CountFor++
	} else {
		msg.CountAgainst++
	}
	p.Metrics.IncVote(forVote)

	n := p.Membership.Size()
	switch {
	case msg.CountAgainst > n/2:
		if p.Log != nil {
			p.Log.Infof("peer %d: poll %s rejected (against=%d n=%d)", p.Self, msg.Topic, msg.CountAgainst, n)
		}
		return nil, false, false
	case msg.CountFor+msg.CountAgainst == n:
		if p.Log != nil {
			p.Log.Infof("peer %d: poll %s exhausted without majority (for=%d against=%d n=%d)", p.Self, msg.Topic, msg.CountFor, msg.CountAgainst, n)
		}
		return nil, false, false
	case msg.CountFor > n/2:
		if p.Log != nil {
			p.Log.Infof("peer %d: poll %s accepted (for=%d n=%d)", p.Self, msg.Topic, msg.CountFor, n)
		}
		p.Perform(msg.Topic)
		action := types.Message{
			Type:            types.KindAction,
			Topic:           msg.Topic,
			InitiatorID:     msg.InitiatorID,
			ProtocolVersion: definition.ProtocolVersion,
		}.WithSender(p.Self, p.Host, p.Port)
		return &action, true, false
	default:
		out := msg.WithSender(p.Self, p.Host, p.Port)
		return &out, false, false
	}
}

// handleAction implements the execution fan-out of spec.md §4.4.
func (p *Peer) handleAction(msg types.Message) (*types.Message, bool, bool) {
	if p.Self == msg.InitiatorID {
		if p.Log != nil {
			p.Log.Infof("peer %d: action %s completed its lap", p.Self, msg.Topic)
		}
		return nil, false, false
	}
	p.Perform(msg.Topic)
	p.Metrics.IncAction()
	out := msg.WithSender(p.Self, p.Host, p.Port)
	return &out, false, false
}

// handleUpdate implements the repair-broadcast relay of spec.md §4.4.
func (p *Peer) handleUpdate(msg types.Message) (*types.Message, bool, bool) {
	if p.Self == msg.InitiatorID {
		if p.Log != nil {
			p.Log.Infof("peer %d: update from %d completed its lap", p.Self, msg.InitiatorID)
		}
		return nil, false, false
	}
	if err := p.Membership.ApplyUpdate(msg.InitiatorID, msg.Successor, msg.FaultyRobots); err != nil && p.Log != nil {
		p.Log.Warnf("peer %d: apply_update(%d) failed: %v", p.Self, msg.InitiatorID, err)
	}
	p.Metrics.IncRepair()
	out := msg.WithSender(p.Self, p.Host, p.Port)
	return &out, false, false
}

// InitiatePoll builds and sends the first poll of a fresh consensus round,
// adopting its own origin as T0 per spec.md §3.
func (p *Peer) InitiatePoll(topic types.Topic) error {
	now := time.Now()
	p.Timer.Adopt(now)
	msg := types.Message{
		Type:            types.KindPoll,
		Topic:           topic,
		InitiatorID:     p.Self,
		StartTime:       toUnixFloat(now),
		ProtocolVersion: definition.ProtocolVersion,
	}.WithSender(p.Self, p.Host, p.Port)
	return p.Sender.SendToSuccessor(msg)
}

// GracefulShutdown implements spec.md §4.7: fan out a shutdown message to
// every other known peer (best effort, short timeout), flush metrics,
// then terminate locally with exit code 0.
func (p *Peer) GracefulShutdown() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.fanOutShutdown()
	p.terminateLocal(0)
}

func (p *Peer) fanOutShutdown() {
	snapshot := p.Membership.Snapshot()
	shutdown := types.Message{Type: types.KindShutdown}.WithSender(p.Self, p.Host, p.Port)

	var wg sync.WaitGroup
	for id := range snapshot {
		if id == p.Self {
			continue
		}
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Sender.SendDirect(id, shutdown, 2*time.Second); err != nil && p.Log != nil {
				p.Log.Debugf("peer %d: shutdown fan-out to %d failed: %v", p.Self, id, err)
			}
		}()
	}
	wg.Wait()
}

// fatalTerminate is the AloneInRing path of spec.md §7: no fan-out (there
// is nobody left to tell), exit code 1. A bind failure never reaches a
// Peer; cmd/robot handles it before one is built.
func (p *Peer) fatalTerminate(code int) {
	p.terminateLocal(code)
}

func (p *Peer) terminateLocal(code int) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.exitCode = code
	p.mu.Unlock()

	if err := p.Metrics.Flush(); err != nil && p.Log != nil {
		p.Log.Errorf("peer %d: failed flushing metrics: %v", p.Self, err)
	}
	if p.CloseListener != nil {
		p.CloseListener()
	}
	p.cancel()
}

func unixToTime(sec float64) time.Time {
	whole := math.Floor(sec)
	frac := sec - whole
	return time.Unix(int64(whole), int64(frac*1e9))
}

func toUnixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
