package initialize

import "sync"

// Gate is the rebuild lock. Searches hold the read side while querying the
// index; Initialize holds the write side while clearing and refilling it, so
// a query sees either the previous index or the finished one, never a
// partially built state.
type Gate struct {
	sync.RWMutex
}
