package search

import (
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
)

// Monitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps, for example from a CLI.
type Monitor interface {
	Start(query string, filter index.Filter, topK int)
	Skipped(reason string)
	AfterEmbedding(dimension int)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ index.Filter, _ int) {}
func (n *noopMonitor) Skipped(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ int)                  {}
func (n *noopMonitor) Finish(_ []core.SearchResult)          {}
