package types

// Kind discriminates the message types of spec.md §3. The wire field is
// "type" to match the reference JSON shape.
type Kind string

const (
	KindPoll     Kind = "poll"
	KindAction   Kind = "action"
	KindUpdate   Kind = "update"
	KindPing     Kind = "ping"
	KindShutdown Kind = "shutdown"
)

// Message is the single self-contained wire object of spec.md §4.1: every
// message carries the common envelope fields, plus whichever per-kind
// payload fields its Type calls for. Fields irrelevant to a given Type are
// left zero-valued and omitted on the wire.
type Message struct {
	Type       Kind   `json:"type"`
	SenderID   RobotID `json:"sender_id"`
	SenderHost string `json:"sender_host"`
	SenderPort int    `json:"sender_port"`

	// ProtocolVersion travels on poll and action messages so peers can
	// reject an incompatible fleet member early; it is empty on ping,
	// update and shutdown. See definition.CheckCompatible.
	ProtocolVersion string `json:"protocol_version,omitempty"`

	// poll
	Topic         Topic   `json:"topic,omitempty"`
	InitiatorID   RobotID `json:"initiator_id,omitempty"`
	CountFor      int     `json:"count_for,omitempty"`
	CountAgainst  int     `json:"count_against,omitempty"`
	StartTime     float64 `json:"start_time,omitempty"`

	// update
	Successor    RobotID   `json:"successor,omitempty"`
	FaultyRobots []RobotID `json:"faulty_robots,omitempty"`
}

// Sender returns the envelope fields describing who sent this message.
func (m Message) Sender() (RobotID, string, int) {
	return m.SenderID, m.SenderHost, m.SenderPort
}

// WithSender returns a copy of m with its sender envelope fields rewritten
// to self, the way every handler must do before forwarding a message (the
// "sender fields updated" clause of spec.md §4.4 applies to poll, action
// and update alike).
func (m Message) WithSender(self RobotID, host string, port int) Message {
	m.SenderID = self
	m.SenderHost = host
	m.SenderPort = port
	return m
}
