package definition

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// ProtocolVersion is stamped onto the poll a peer initiates and the action
// it emits on acceptance (relays keep whatever the message carried); ping,
// update and shutdown messages are sent without it. The fleet-wide
// analogue of pkg/mcast/protocol.go's RPCHeader.ProtocolVersion.
const ProtocolVersion = "1.0.0"

// CheckCompatible rejects a peer announcing an incompatible major version,
// grounded on pkg/mcast/protocol.go's checkRPCHeader. An empty announced
// version is treated as compatible: ping, update and shutdown messages are
// sent without one, and a sender that predates version stamping carries
// none either; neither is a protocol violation.
func CheckCompatible(announced string) error {
	if announced == "" {
		return nil
	}
	mine, err := version.NewVersion(ProtocolVersion)
	if err != nil {
		return fmt.Errorf("robovote: invalid local protocol version %q: %w", ProtocolVersion, err)
	}
	theirs, err := version.NewVersion(announced)
	if err != nil {
		return fmt.Errorf("robovote: invalid announced protocol version %q: %w", announced, err)
	}
	if mine.Segments()[0] != theirs.Segments()[0] {
		return fmt.Errorf("%w: peer announced %s, this build is %s", types.ErrIncompatibleProtocol, announced, ProtocolVersion)
	}
	return nil
}
