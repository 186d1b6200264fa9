// Command robot runs a single peer of a ring-voting robot fleet: it binds
// its listening endpoint, joins the configured ring, and participates in
// token-passing consensus votes and ring repair until the fleet shuts
// down. See original_source/robot.py for the prototype this entrypoint's
// argument handling is grounded on.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ringfleet/robovote/pkg/robovote/core"
	"github.com/ringfleet/robovote/pkg/robovote/definition"
	"github.com/ringfleet/robovote/pkg/robovote/types"
)

const watchdogInterval = 200 * time.Millisecond

func main() {
	os.Exit(run(os.Args[0], os.Args[1:]))
}

func run(appName string, argv []string) int {
	args, err := definition.ParseArgs(appName, argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// --faulty injects a link failure by never coming up at all.
	if args.Faulty {
		fmt.Fprintf(os.Stderr, "robot %d: --faulty set, exiting immediately\n", args.ID)
		return 1
	}

	log := definition.NewLogrusLogger(args.ID, args.Debug)
	self := types.RobotID(args.ID)

	table := map[types.RobotID]types.PeerInfo{
		self: {Host: args.Host, Port: args.Port, Successor: types.NoSuccessor},
	}
	allVoteAgainst := args.AllVoteAgainst
	if args.Automate {
		specs, err := definition.LoadFleetConfig(args.File)
		if err != nil {
			log.Errorf("failed loading fleet config: %v", err)
			return 1
		}
		table = definition.MembershipTable(specs)
		if spec, ok := specs[self]; ok {
			args.Host = spec.Host
			args.Port = spec.Port
			args.TestSend = spec.TestSend
			allVoteAgainst = allVoteAgainst || spec.AllVoteAgainst
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", args.Host, args.Port))
	if err != nil {
		log.Errorf("bind failure: %v", err)
		return 1
	}
	defer listener.Close()
	definition.PrintBanner(os.Stdout, args.ID, args.Host, args.Port)

	membership := core.NewMembership(table)
	timer := core.NewConsensusTimer(args.TimeoutDuration())
	sender := core.NewSender(membership, self, args.Host, args.Port, log)
	sender.Jitter = core.RandomJitter(50 * time.Millisecond)

	repairer := &core.Repairer{
		Membership: membership,
		Self:       self,
		SelfHost:   args.Host,
		SelfPort:   args.Port,
		Ping:       sender.Ping,
		SendUpdate: func(candidate types.RobotID, update types.Message) error {
			return sender.SendDirect(candidate, update, 2*time.Second)
		},
		Log: log,
	}
	sender.Repair = repairer.Run

	policy := core.NewBernoulliPolicy(allVoteAgainst, args.VoteProbability, time.Now().UnixNano()^int64(args.ID))
	metrics := definition.NewMetrics(fmt.Sprintf("robot-%d-metrics.json", args.ID))

	peer := core.NewPeer(self, args.Host, args.Port, membership, timer, sender, repairer, policy, log, metrics)
	server := core.NewInboundServer(listener, core.InvokerInstance(), log, peer.Deliver)
	peer.CloseListener = server.Close

	go server.Serve()
	go peer.Run()
	go peer.RunWatchdog(watchdogInterval)

	if args.TestSend {
		if err := initiateOrProbe(args, peer, sender); err != nil {
			log.Errorf("test_send failed: %v", err)
		}
	}

	<-peer.Done()
	definition.PrintShutdown(os.Stdout, args.ID, peer.ExitCode())
	return peer.ExitCode()
}

// initiateOrProbe implements the --test_send behaviors of spec.md §6,
// generalizing original_source/robot.py's ad-hoc handshake: if a
// server_host/server_port is given, it's the standalone "no ring yet"
// smoke test and we ping it directly; otherwise this peer initiates a
// poll against its configured successor.
func initiateOrProbe(args *definition.CLIArgs, peer *core.Peer, sender *core.Sender) error {
	if args.ServerPort != 0 {
		endpoint := types.Endpoint{Host: args.ServerHost, Port: args.ServerPort}
		adhoc := core.NewMembership(map[types.RobotID]types.PeerInfo{
			types.RobotID(-2): {Host: endpoint.Host, Port: endpoint.Port, Successor: types.RobotID(-2)},
		})
		probe := core.NewSender(adhoc, types.RobotID(-2), args.Host, args.Port, sender.Log)
		return probe.Ping(types.RobotID(-2))
	}
	return peer.InitiatePoll(types.MoveUp)
}
