package core

import (
	"net"
	"time"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// InboundServer is the accept-loop half of spec.md §4.3: accept
// sequentially, spawn a handler per connection that reads one message,
// decodes it, and hands it to Deliver. Grounded on
// ahmed82-bdls-consensus/agent-tcp/tcp_peer.go's accept-then-spawn shape,
// stripped of its authentication handshake and length-prefixed framing.
type InboundServer struct {
	Listener net.Listener
	Invoker  Invoker
	Log      types.Logger
	Deliver  func(types.Message)

	closed chan struct{}
}

// NewInboundServer wraps an already-bound listener.
func NewInboundServer(listener net.Listener, invoker Invoker, log types.Logger, deliver func(types.Message)) *InboundServer {
	return &InboundServer{
		Listener: listener,
		Invoker:  invoker,
		Log:      log,
		Deliver:  deliver,
		closed:   make(chan struct{}),
	}
}

// Serve accepts connections until Close is called. Each accepted
// connection is handled by a spawned task and never blocks the accept
// loop itself.
func (s *InboundServer) Serve() {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if s.Log != nil {
				s.Log.Warnf("accept error: %v", err)
			}
			continue
		}
		s.Invoker.Spawn(func() { s.handle(conn) })
	}
}

func (s *InboundServer) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	msg, err := DecodeMessage(conn)
	if err != nil {
		if s.Log != nil {
			s.Log.Warnf("dropping connection from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}
	s.Deliver(msg)
}

// Close stops accepting new connections. In-flight handlers are left to
// finish reading what they already have.
func (s *InboundServer) Close() {
	select {
	case <-s.closed:
		return
	default:
		close(s.closed)
	}
	s.Listener.Close()
}
