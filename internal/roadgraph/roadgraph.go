// Package roadgraph provides the RoadGraph adapter the rest of the
// pipeline depends on (spec C1): a thin shortest-travel-time oracle
// over a weighted directed graph of model.Node vertices.
//
// Production deployments normally back this interface with a live
// routing service; Graph is the reference in-memory implementation
// used by cmd/solve, internal/fixtures, and the test suite.
package roadgraph

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// Unreachable is returned by ShortestTravelTime when no path exists.
const Unreachable = math.MaxFloat64

// ErrNegativeWeight is returned by AddEdge for a negative travel time;
// the Dijkstra search this package performs is undefined for those.
var ErrNegativeWeight = errors.New("roadgraph: negative edge weight")

// ErrVertexNotFound is returned when a query names a vertex absent
// from the graph.
var ErrVertexNotFound = errors.New("roadgraph: vertex not found")

// RoadGraph is the external routing oracle every other package in the
// pipeline consumes. Implementations must be safe for concurrent use:
// the RTV stage calls ShortestTravelTime from many goroutines at once.
type RoadGraph interface {
	ShortestTravelTime(from, to model.Node) (float64, error)
	HasPath(from, to model.Node) (bool, error)
}

// edge is one directed, weighted connection in the adjacency list.
type edge struct {
	to     model.Node
	weight float64
}

// Graph is an in-memory directed weighted graph keyed by model.Node,
// with single-source Dijkstra computed lazily and memoized per source.
type Graph struct {
	mu    sync.RWMutex
	adj   map[model.Node][]edge
	verts map[model.Node]bool

	distMu sync.Mutex
	dist   map[model.Node]map[model.Node]float64 // memoized per-source distance rows
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		adj:   make(map[model.Node][]edge),
		verts: make(map[model.Node]bool),
		dist:  make(map[model.Node]map[model.Node]float64),
	}
}

// AddVertex registers a vertex with no outgoing edges, so that
// isolated nodes still participate in HasPath queries.
func (g *Graph) AddVertex(n model.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verts[n] = true
	if _, ok := g.adj[n]; !ok {
		g.adj[n] = nil
	}
}

// AddEdge inserts a directed edge from -> to with the given travel
// time in seconds. Negative weights are rejected: the pipeline never
// needs them and Dijkstra is undefined for them.
func (g *Graph) AddEdge(from, to model.Node, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %v->%v weight=%f", ErrNegativeWeight, from, to, seconds)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verts[from] = true
	g.verts[to] = true
	g.adj[from] = append(g.adj[from], edge{to: to, weight: seconds})
	return nil
}

// nodeDist pairs a vertex with its tentative distance for the heap.
type nodeDist struct {
	node model.Node
	dist float64
}

type nodePQ []nodeDist

func (pq nodePQ) Len() int            { return len(pq) }
func (pq nodePQ) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq nodePQ) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *nodePQ) Push(x interface{}) { *pq = append(*pq, x.(nodeDist)) }
func (pq *nodePQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// dijkstraFrom runs single-source Dijkstra using a lazy-decrease-key
// min-heap: stale heap entries are skipped via the visited check
// rather than decreased in place.
func (g *Graph) dijkstraFrom(source model.Node) map[model.Node]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dist := make(map[model.Node]float64, len(g.verts))
	visited := make(map[model.Node]bool, len(g.verts))

	pq := make(nodePQ, 0, len(g.verts))
	heap.Init(&pq)
	dist[source] = 0
	heap.Push(&pq, nodeDist{node: source, dist: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(nodeDist)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		for _, e := range g.adj[cur.node] {
			next := cur.dist + e.weight
			if d, ok := dist[e.to]; !ok || next < d {
				dist[e.to] = next
				heap.Push(&pq, nodeDist{node: e.to, dist: next})
			}
		}
	}
	return dist
}

// ShortestTravelTime returns the minimum travel time from -> to, or
// Unreachable if no path exists. Results are memoized per source: the
// first query from a given vertex computes the full distance row.
func (g *Graph) ShortestTravelTime(from, to model.Node) (float64, error) {
	g.mu.RLock()
	_, fromOK := g.verts[from]
	_, toOK := g.verts[to]
	g.mu.RUnlock()
	if !fromOK || !toOK {
		return 0, fmt.Errorf("%w: %v or %v", ErrVertexNotFound, from, to)
	}
	if from == to {
		return 0, nil
	}

	g.distMu.Lock()
	row, ok := g.dist[from]
	if !ok {
		row = g.dijkstraFrom(from)
		g.dist[from] = row
	}
	g.distMu.Unlock()

	if d, ok := row[to]; ok {
		return d, nil
	}
	return Unreachable, nil
}

// HasPath reports whether any path exists from -> to.
func (g *Graph) HasPath(from, to model.Node) (bool, error) {
	d, err := g.ShortestTravelTime(from, to)
	if err != nil {
		return false, err
	}
	return d < Unreachable, nil
}
