package types

import "fmt"

// RobotID uniquely identifies a peer within a single run. Ids are never
// reused once assigned, and there is no notion of a peer rejoining under a
// different id.
type RobotID int

// Endpoint is the listening address a peer can be dialed on.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// NoSuccessor marks a peer with no configured successor, used only for the
// ad-hoc "test_send" standalone mode where there is no ring to join.
const NoSuccessor RobotID = -1
