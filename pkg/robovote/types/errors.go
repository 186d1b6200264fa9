package types

import "errors"

// Sentinel errors for the taxonomy of spec.md §7.
var (
	// ErrUnknownPeer is returned by a membership lookup for an id that is
	// not (or no longer) present in the table.
	ErrUnknownPeer = errors.New("robovote: unknown peer")

	// ErrAloneInRing is returned when ring repair walks back to the
	// repairing peer itself: every other peer is dead.
	ErrAloneInRing = errors.New("robovote: alone in ring")

	// ErrTimerExpired names the consensus-deadline-expired condition. No
	// function in this module returns it: ConsensusTimer.Expired reports
	// expiry as a bool.
	ErrTimerExpired = errors.New("robovote: consensus deadline expired")

	// ErrBindFailure names a failure to bind the listening endpoint at
	// startup. No function in this module returns it: cmd/robot logs the
	// net.Listen error and exits with code 1.
	ErrBindFailure = errors.New("robovote: bind failure")

	// ErrDeserialization is returned when an inbound connection's bytes do
	// not parse as a valid Message.
	ErrDeserialization = errors.New("robovote: malformed message")

	// ErrMessageTooLarge is returned when an outbound message exceeds the
	// soft framing cap of spec.md §4.1.
	ErrMessageTooLarge = errors.New("robovote: message exceeds frame cap")

	// ErrIncompatibleProtocol is returned when a peer announces a protocol
	// version this build cannot interoperate with.
	ErrIncompatibleProtocol = errors.New("robovote: incompatible protocol version")
)
