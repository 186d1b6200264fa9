package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// CLIArgs mirrors the flag surface of spec.md §6, reconstructed from
// original_source/robot.py's argparse setup and generalized with the
// ring/repair/timeout flags the distilled spec adds on top of it.
type CLIArgs struct {
	ID       int
	Host     string
	Port     int

	Automate bool
	File     string

	TestSend   bool
	ServerHost string
	ServerPort int

	Timeout         float64
	AllVoteAgainst  bool
	Faulty          bool
	VoteProbability float64
	Debug           bool
}

// ParseArgs parses argv (typically os.Args[1:]) per spec.md §6 using
// kingpin, already present indirect in the teacher's go.mod and promoted
// here to a direct dependency doing real work.
func ParseArgs(appName string, argv []string) (*CLIArgs, error) {
	app := kingpin.New(appName, "A single peer in a ring-voting robot fleet.")

	a := &CLIArgs{}
	idArg := app.Arg("id", "id of this robot").Required().Int()
	hostArg := app.Arg("host", "host this robot listens on").Default("localhost").String()
	portArg := app.Arg("port", "port this robot listens on").Default("8000").Int()

	automateFlag := app.Flag("automate", "load the fleet from the config file").Short('a').Bool()
	fileFlag := app.Flag("file", "fleet config file path").Short('f').Default("setup3.json").String()
	testSendFlag := app.Flag("test_send", "this peer initiates a poll").Bool()
	serverHostFlag := app.Flag("server_host", "ad-hoc target host for test_send without a ring").Default("localhost").String()
	serverPortFlag := app.Flag("server_port", "ad-hoc target port for test_send without a ring").Int()
	timeoutFlag := app.Flag("timeout", "fleet-wide consensus deadline bound, in seconds").Default("30.0").Float64()
	allVoteAgainstFlag := app.Flag("all_vote_against", "force this peer's vote policy to always vote against").Bool()
	faultyFlag := app.Flag("faulty", "exit immediately at startup, used to inject a link failure").Bool()
	voteProbabilityFlag := app.Flag("vote-probability", "P(for) for the default Bernoulli vote policy").Default("0.7").Float64()
	debugFlag := app.Flag("debug", "enable debug-level logging").Bool()

	if _, err := app.Parse(argv); err != nil {
		return nil, err
	}

	a.ID = *idArg
	a.Host = *hostArg
	a.Port = *portArg
	a.Automate = *automateFlag
	a.File = *fileFlag
	a.TestSend = *testSendFlag
	a.ServerHost = *serverHostFlag
	a.ServerPort = *serverPortFlag
	a.Timeout = *timeoutFlag
	a.AllVoteAgainst = *allVoteAgainstFlag
	a.Faulty = *faultyFlag
	a.VoteProbability = *voteProbabilityFlag
	a.Debug = *debugFlag
	return a, nil
}

// LoadFleetConfig reads the config file schema of spec.md §6: a top-level
// object keyed by stringified peer id.
func LoadFleetConfig(path string) (map[types.RobotID]types.PeerSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("robovote: read fleet config %s: %w", path, err)
	}
	var byString map[string]types.PeerSpec
	if err := json.Unmarshal(raw, &byString); err != nil {
		return nil, fmt.Errorf("robovote: parse fleet config %s: %w", path, err)
	}
	out := make(map[types.RobotID]types.PeerSpec, len(byString))
	for key, spec := range byString {
		var id int
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return nil, fmt.Errorf("robovote: fleet config key %q is not an integer peer id: %w", key, err)
		}
		out[types.RobotID(id)] = spec
	}
	return out, nil
}

// MembershipTable converts the raw config-file peer specs into the
// id -> {host, port, successor} table the Membership view expects.
func MembershipTable(specs map[types.RobotID]types.PeerSpec) map[types.RobotID]types.PeerInfo {
	table := make(map[types.RobotID]types.PeerInfo, len(specs))
	for id, spec := range specs {
		table[id] = types.PeerInfo{
			Host:      spec.Host,
			Port:      spec.Port,
			Successor: types.RobotID(spec.Successor),
		}
	}
	return table
}

// TimeoutDuration converts the --timeout float-seconds flag into a
// time.Duration.
func (a *CLIArgs) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout * float64(time.Second))
}
