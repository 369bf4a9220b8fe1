package search

import (
	"github.com/poiesic/gentable/core"
)

// Monitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type Monitor interface {
	Start(query core.SearchQuery)
	AfterEmbedding(columns []string)
	AfterRetrieval(rows []*core.ScoredRow)
	AfterRerank(rows []*core.ScoredRow)
	Finish(hits []Hit)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.SearchQuery)           {}
func (n *noopMonitor) AfterEmbedding(_ []string)          {}
func (n *noopMonitor) AfterRetrieval(_ []*core.ScoredRow) {}
func (n *noopMonitor) AfterRerank(_ []*core.ScoredRow)    {}
func (n *noopMonitor) Finish(_ []Hit)                     {}
