package core

import "sync"

// Invoker spawns a function, the indirection the teacher's own Peer uses
// (pkg/mcast/core/peer.go's invoker field / InvokerInstance()) so tests can
// substitute a WaitGroup-joining implementation that makes goroutine
// completion deterministic instead of the fire-and-forget default.
type Invoker interface {
	Spawn(f func())
}

// goInvoker is the production Invoker: plain `go f()`.
type goInvoker struct{}

func (goInvoker) Spawn(f func()) { go f() }

var defaultInvoker Invoker = goInvoker{}

// InvokerInstance returns the process-wide default Invoker.
func InvokerInstance() Invoker { return defaultInvoker }

// JoiningInvoker is an Invoker that tracks every spawned goroutine in a
// WaitGroup, letting a caller (typically a test) wait for every spawned
// task to finish before asserting on shared state. Grounded on the
// teacher's test.TestInvoker.
type JoiningInvoker struct {
	wg sync.WaitGroup
}

func NewJoiningInvoker() *JoiningInvoker { return &JoiningInvoker{} }

func (j *JoiningInvoker) Spawn(f func()) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		f()
	}()
}

// Wait blocks until every spawned function has returned.
func (j *JoiningInvoker) Wait() { j.wg.Wait() }
