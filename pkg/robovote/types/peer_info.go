package types

// PeerInfo is a single row of the membership table: where a peer listens,
// and who it currently forwards to.
type PeerInfo struct {
	Host      string  `json:"host"`
	Port      int     `json:"port"`
	Successor RobotID `json:"successor"`
}

func (p PeerInfo) Endpoint() Endpoint {
	return Endpoint{Host: p.Host, Port: p.Port}
}

// PeerSpec is the config-file shape of spec.md §6: one entry per peer,
// keyed by stringified id in the JSON document.
type PeerSpec struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Successor       int    `json:"successor"`
	TestSend        bool   `json:"test_send"`
	Faulty          bool   `json:"faulty"`
	AllVoteAgainst  bool   `json:"all_vote_against,omitempty"`
}
