package schedule

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
	"github.com/pkg/errors"
)

const (
	white = iota // not visited
	gray         // on the DFS stack
	black        // finished
)

// Graph is the prerequisite graph of the pending topics of a run.
// Topics live in a flat table; edges reference table indexes (topic -> prerequisite).
type Graph struct {
	topics   []Topic
	index    map[string]int
	prereqs  [][]int
	order    []int // topological: prerequisites first
	depth    []int // number of strictly earlier study days a topic needs
	Warnings []Warning
}

// BuildGraph indexes pending topics and their prerequisite edges. A prerequisite id
// listed in satisfied (done topics, or topics without pending hours) is dropped
// silently; any other id that is not a pending topic is dropped with a warning.
// Cycles are broken by dropping the prerequisite edges of the topic that closes them.
func BuildGraph(pending []Topic, satisfied map[string]bool) (*Graph, error) {
	topics := make([]Topic, len(pending))
	copy(topics, pending)
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].OrderIndex != topics[j].OrderIndex {
			return topics[i].OrderIndex < topics[j].OrderIndex
		}
		return topics[i].ID < topics[j].ID
	})

	g := &Graph{
		topics:  topics,
		index:   make(map[string]int, len(topics)),
		prereqs: make([][]int, len(topics)),
	}
	for i, t := range topics {
		g.index[t.ID] = i
	}

	for i, t := range topics {
		seen := make(map[int]bool, len(t.PrerequisiteIDs))
		for _, pid := range t.PrerequisiteIDs {
			if satisfied[pid] {
				continue
			}
			p, ok := g.index[pid]
			if !ok {
				g.Warnings = append(g.Warnings, Warning{
					Code:     WarnUnknownPrereq,
					Message:  fmt.Sprintf("prerequisite %q of topic %q is not schedulable and was ignored", pid, t.Title),
					TopicID:  t.ID,
					CourseID: t.CourseID,
				})
				continue
			}
			if !seen[p] {
				seen[p] = true
				g.prereqs[i] = append(g.prereqs[i], p)
			}
		}
		sort.Ints(g.prereqs[i])
	}

	g.breakCycles()
	if err := g.sortTopologically(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) breakCycles() {
	color := make([]uint8, len(g.topics))

	var visit func(u int)
	visit = func(u int) {
		color[u] = gray
		for _, p := range g.prereqs[u] {
			switch color[p] {
			case white:
				visit(p)
			case gray:
				t := g.topics[u]
				g.Warnings = append(g.Warnings, Warning{
					Code:     WarnCycleDetected,
					Message:  fmt.Sprintf("topic %q is part of a prerequisite cycle; its prerequisites were ignored", t.Title),
					TopicID:  t.ID,
					CourseID: t.CourseID,
				})
				g.prereqs[u] = nil
				color[u] = black
				return
			}
		}
		color[u] = black
	}

	for u := range g.topics {
		if color[u] == white {
			visit(u)
		}
	}
}

func (g *Graph) sortTopologically() error {
	var edges []toposort.Edge
	for u, ps := range g.prereqs {
		for _, p := range ps {
			edges = append(edges, toposort.Edge{p, u})
		}
	}

	if len(edges) > 0 {
		if _, err := toposort.Toposort(edges); err != nil {
			return errors.Wrap(err, "sorting prerequisite graph")
		}
	}

	// Kahn pass over table indexes, lowest ready index first.
	waiting := make([]int, len(g.topics))
	dependents := make([][]int, len(g.topics))
	for u, ps := range g.prereqs {
		waiting[u] = len(ps)
		for _, p := range ps {
			dependents[p] = append(dependents[p], u)
		}
	}
	var ready []int
	for u := range g.topics {
		if waiting[u] == 0 {
			ready = append(ready, u)
		}
	}
	order := make([]int, 0, len(g.topics))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for _, v := range dependents[u] {
			if waiting[v]--; waiting[v] == 0 {
				i := sort.SearchInts(ready, v)
				ready = append(ready, 0)
				copy(ready[i+1:], ready[i:])
				ready[i] = v
			}
		}
	}
	if len(order) != len(g.topics) {
		return errors.New("sorting prerequisite graph: cycle left after breaking cycles")
	}
	g.order = order

	g.depth = make([]int, len(g.topics))
	for _, u := range g.order {
		for _, p := range g.prereqs[u] {
			if g.depth[p]+1 > g.depth[u] {
				g.depth[u] = g.depth[p] + 1
			}
		}
	}
	return nil
}

func (g *Graph) Len() int { return len(g.topics) }

func (g *Graph) Topic(i int) Topic { return g.topics[i] }

func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Prerequisites returns the table indexes of the prerequisites of topic i that gate its readiness.
func (g *Graph) Prerequisites(i int) []int { return g.prereqs[i] }

// PrerequisiteIDs returns the ids of the prerequisites of topic i that gate its readiness.
func (g *Graph) PrerequisiteIDs(i int) []string {
	ids := make([]string, 0, len(g.prereqs[i]))
	for _, p := range g.prereqs[i] {
		ids = append(ids, g.topics[p].ID)
	}
	return ids
}

// Order returns topic indexes in topological order, prerequisites first.
func (g *Graph) Order() []int { return g.order }

// Depth returns the length of the longest prerequisite chain below topic i.
func (g *Graph) Depth(i int) int { return g.depth[i] }

// Closure returns the set of topic indexes reachable from roots through prerequisite edges, roots included.
func (g *Graph) Closure(roots []int) map[int]bool {
	seen := make(map[int]bool, len(roots))
	stack := append([]int(nil), roots...)
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[u] {
			continue
		}
		seen[u] = true
		stack = append(stack, g.prereqs[u]...)
	}
	return seen
}
