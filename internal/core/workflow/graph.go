package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

// End is the terminal node of every graph.
const End = "__end__"

// Stage is one node of the workflow graph. It mutates the shared record in place.
type Stage interface {
	Name() string
	Run(ctx context.Context, rec *domain.ProcessingRecord) error
}

// RouteFunc picks a named route from the record after a stage has run.
type RouteFunc func(rec *domain.ProcessingRecord) string

type conditionalEdge struct {
	route   RouteFunc
	targets map[string]string
}

// Graph is a directed graph of stages with static and conditional edges.
// Build it with the Add* methods and call Compile before Run.
type Graph struct {
	nodes       map[string]Stage
	edges       map[string]string
	conditional map[string]conditionalEdge
	entry       string
	buildErrs   []error
	compiled    bool
}

func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[string]Stage),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

func (g *Graph) AddStage(stage Stage) *Graph {
	name := stage.Name()
	switch {
	case name == "" || name == End:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("invalid stage name %q", name))
	case g.nodes[name] != nil:
		g.buildErrs = append(g.buildErrs, fmt.Errorf("duplicate stage %q", name))
	default:
		g.nodes[name] = stage
	}
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	if _, ok := g.edges[from]; ok {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("stage %q already has an outgoing edge", from))
		return g
	}
	g.edges[from] = to
	return g
}

func (g *Graph) AddConditionalEdges(from string, route RouteFunc, targets map[string]string) *Graph {
	if route == nil || len(targets) == 0 {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("conditional edges from %q need a route func and targets", from))
		return g
	}
	if _, ok := g.conditional[from]; ok {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("stage %q already has conditional edges", from))
		return g
	}
	g.conditional[from] = conditionalEdge{route: route, targets: targets}
	return g
}

func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// Compile checks that the graph is closed: every stage has exactly one way out and
// every edge points at a known stage or End.
func (g *Graph) Compile() error {
	errs := append([]error(nil), g.buildErrs...)

	if g.entry == "" {
		errs = append(errs, errors.New("entry stage is not set"))
	} else if g.nodes[g.entry] == nil {
		errs = append(errs, fmt.Errorf("entry stage %q is not registered", g.entry))
	}

	for from, to := range g.edges {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("edge from unknown stage %q", from))
		}
		if to != End && g.nodes[to] == nil {
			errs = append(errs, fmt.Errorf("edge %q -> %q targets unknown stage", from, to))
		}
	}
	for from, edge := range g.conditional {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("conditional edge from unknown stage %q", from))
		}
		if _, ok := g.edges[from]; ok {
			errs = append(errs, fmt.Errorf("stage %q has both static and conditional edges", from))
		}
		for route, to := range edge.targets {
			if to != End && g.nodes[to] == nil {
				errs = append(errs, fmt.Errorf("route %q from %q targets unknown stage %q", route, from, to))
			}
		}
	}
	for name := range g.nodes {
		_, static := g.edges[name]
		_, cond := g.conditional[name]
		if !static && !cond {
			errs = append(errs, fmt.Errorf("stage %q has no outgoing edge", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("compile workflow graph: %w", err)
	}
	g.compiled = true
	return nil
}

// Run walks the graph from the entry stage until End. A stage error is recorded on
// the record and the walk continues along that stage's outgoing edge.
func (g *Graph) Run(ctx context.Context, rec *domain.ProcessingRecord) error {
	if !g.compiled {
		return errors.New("workflow graph is not compiled")
	}

	maxSteps := 2 * len(g.nodes)
	current := g.entry
	for steps := 0; current != End; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("workflow exceeded %d steps at stage %q", maxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		stage := g.nodes[current]
		if err := stage.Run(ctx, rec); err != nil {
			rec.AddProcessingError(fmt.Sprintf("%s error: %v", current, err))
			rec.CurrentStep = current + "_failed"
		}

		next, err := g.next(current, rec)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

func (g *Graph) next(current string, rec *domain.ProcessingRecord) (string, error) {
	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	edge := g.conditional[current]
	route := edge.route(rec)
	to, ok := edge.targets[route]
	if !ok {
		return "", fmt.Errorf("stage %q returned unknown route %q", current, route)
	}
	rec.Route = route
	return to, nil
}
