package workflow

import (
	"context"
	"fmt"
	"sort"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// Graph is the directed stage graph for one tenant and entity type.
// Transitions are explicit edges; back-edges are real rows, never implied by
// sequence order.
type Graph struct {
	stages map[uuid.UUID]store.Stage
	next   map[uuid.UUID][]uuid.UUID
}

// GraphLoader builds graphs from externally authored stage configuration.
// A tenant without its own graph falls back to the shared system graph.
type GraphLoader struct {
	stages store.StageStore
}

func NewGraphLoader(stages store.StageStore) *GraphLoader {
	return &GraphLoader{stages: stages}
}

// Load fetches the tenant's graph, or the shared system graph when the
// tenant has no stages of its own for this entity type.
func (l *GraphLoader) Load(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) (*Graph, error) {
	stages, err := l.stages.ListStages(ctx, tenantID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages: %w", err)
	}

	scope := tenantID
	if len(stages) == 0 && tenantID != nil {
		scope = nil
		stages, err = l.stages.ListStages(ctx, nil, entityType)
		if err != nil {
			return nil, fmt.Errorf("failed to load system stages: %w", err)
		}
	}

	edges, err := l.stages.ListEdges(ctx, scope, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage edges: %w", err)
	}

	return NewGraph(stages, edges), nil
}

func NewGraph(stages []store.Stage, edges []store.StageEdge) *Graph {
	g := &Graph{
		stages: make(map[uuid.UUID]store.Stage, len(stages)),
		next:   make(map[uuid.UUID][]uuid.UUID),
	}
	for _, s := range stages {
		g.stages[s.ID] = s
	}
	for _, e := range edges {
		if _, ok := g.stages[e.FromStage]; !ok {
			continue
		}
		if _, ok := g.stages[e.ToStage]; !ok {
			continue
		}
		g.next[e.FromStage] = append(g.next[e.FromStage], e.ToStage)
	}
	return g
}

// Stage returns the stage definition by id.
func (g *Graph) Stage(id uuid.UUID) (store.Stage, bool) {
	s, ok := g.stages[id]
	return s, ok
}

// AllowedNext returns the stages reachable from the given stage, ordered by
// sequence. A nil from means the job has not entered the workflow yet; any
// active stage is a valid entry point.
func (g *Graph) AllowedNext(from *uuid.UUID) []store.Stage {
	var out []store.Stage
	if from == nil {
		for _, s := range g.stages {
			out = append(out, s)
		}
	} else {
		for _, id := range g.next[*from] {
			if s, ok := g.stages[id]; ok {
				out = append(out, s)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// CanTransition reports whether from -> to is an allowed move.
func (g *Graph) CanTransition(from *uuid.UUID, to uuid.UUID) bool {
	if _, ok := g.stages[to]; !ok {
		return false
	}
	if from == nil {
		return true
	}
	for _, id := range g.next[*from] {
		if id == to {
			return true
		}
	}
	return false
}

func (g *Graph) stageName(id *uuid.UUID) string {
	if id == nil {
		return "(none)"
	}
	if s, ok := g.stages[*id]; ok {
		return s.Name
	}
	return id.String()
}

func (g *Graph) allowedNames(from *uuid.UUID) []string {
	allowed := g.AllowedNext(from)
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, s.Name)
	}
	return names
}
