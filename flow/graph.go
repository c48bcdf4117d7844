package flow

import "fmt"

// conditionalEdge pairs a router with its declared label -> target table.
type conditionalEdge struct {
	router  Router
	targets map[string]string
}

// Graph is the immutable workflow definition: nodes, static edges, conditional
// routers, interrupt points, and the entry node.
//
// A Graph is assembled with the Add* methods, then frozen with Compile.
// Compile validates the whole definition so that an unregistered node name or
// a dangling edge is caught at construction, not at run time. After Compile
// the graph is read-only and safe for concurrent use without locking.
type Graph struct {
	schema         *Schema
	nodes          map[string]Node
	static         map[string]string
	conditional    map[string]conditionalEdge
	interruptAfter map[string]bool
	entry          string
	compiled       bool
}

// NewGraph creates an empty graph over the given state schema.
func NewGraph(schema *Schema) *Graph {
	if schema == nil {
		schema = NewSchema()
	}
	return &Graph{
		schema:         schema,
		nodes:          make(map[string]Node),
		static:         make(map[string]string),
		conditional:    make(map[string]conditionalEdge),
		interruptAfter: make(map[string]bool),
	}
}

// AddNode registers a node under a unique name.
func (g *Graph) AddNode(id string, node Node) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if id == "" {
		return &ConfigError{Message: "node ID cannot be empty"}
	}
	if id == End {
		return &ConfigError{Message: "node ID collides with terminal marker"}
	}
	if node == nil {
		return &ConfigError{Message: "node cannot be nil: " + id}
	}
	if _, exists := g.nodes[id]; exists {
		return &ConfigError{Message: "duplicate node ID: " + id}
	}
	g.nodes[id] = node
	return nil
}

// AddEdge declares a static edge: after from completes, to always runs next.
// The target may be End to terminate the run.
func (g *Graph) AddEdge(from, to string) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if from == "" || to == "" {
		return &ConfigError{Message: "edge endpoints cannot be empty"}
	}
	if _, dup := g.static[from]; dup {
		return &ConfigError{Message: "duplicate static edge from node: " + from}
	}
	if _, dup := g.conditional[from]; dup {
		return &ConfigError{Message: "node already has conditional edges: " + from}
	}
	g.static[from] = to
	return nil
}

// AddConditionalEdges declares a router-resolved edge. After from completes,
// router is invoked with the post-merge state; the label it returns is looked
// up in targets to find the next node. A label may map to End.
func (g *Graph) AddConditionalEdges(from string, router Router, targets map[string]string) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if from == "" {
		return &ConfigError{Message: "edge source cannot be empty"}
	}
	if router == nil {
		return &ConfigError{Message: "router cannot be nil for node: " + from}
	}
	if len(targets) == 0 {
		return &ConfigError{Message: "conditional edge needs at least one target: " + from}
	}
	if _, dup := g.static[from]; dup {
		return &ConfigError{Message: "node already has a static edge: " + from}
	}
	if _, dup := g.conditional[from]; dup {
		return &ConfigError{Message: "duplicate conditional edges from node: " + from}
	}
	copied := make(map[string]string, len(targets))
	for label, to := range targets {
		copied[label] = to
	}
	g.conditional[from] = conditionalEdge{router: router, targets: copied}
	return nil
}

// SetEntryPoint declares the node executed first for a new session.
func (g *Graph) SetEntryPoint(id string) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if id == "" {
		return &ConfigError{Message: "entry point cannot be empty"}
	}
	g.entry = id
	return nil
}

// InterruptAfter marks nodes after which execution suspends and awaits
// external input before continuing.
func (g *Graph) InterruptAfter(ids ...string) error {
	if err := g.mutable(); err != nil {
		return err
	}
	for _, id := range ids {
		g.interruptAfter[id] = true
	}
	return nil
}

// Compile validates the graph and freezes it.
//
// Validation covers the configuration errors that must never surface at run
// time: missing or unknown entry node, edges referencing unregistered nodes,
// nodes with no outgoing route, unknown interrupt nodes, and static-edge
// cycles with no interrupt point to break them.
func (g *Graph) Compile() error {
	if g.compiled {
		return &ConfigError{Message: "graph already compiled"}
	}
	if g.entry == "" {
		return &ConfigError{Message: "entry point not set"}
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return &ConfigError{Message: "entry point does not exist: " + g.entry}
	}
	for from, to := range g.static {
		if _, ok := g.nodes[from]; !ok {
			return &ConfigError{Message: "static edge from unknown node: " + from}
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return &ConfigError{Message: fmt.Sprintf("static edge %s -> %s targets unknown node", from, to)}
			}
		}
	}
	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return &ConfigError{Message: "conditional edge from unknown node: " + from}
		}
		for label, to := range ce.targets {
			if to != End {
				if _, ok := g.nodes[to]; !ok {
					return &ConfigError{Message: fmt.Sprintf("conditional edge %s -[%s]-> %s targets unknown node", from, label, to)}
				}
			}
		}
	}
	for id := range g.nodes {
		_, hasStatic := g.static[id]
		_, hasCond := g.conditional[id]
		if !hasStatic && !hasCond {
			return &ConfigError{Message: "node has no outgoing route: " + id}
		}
	}
	for id := range g.interruptAfter {
		if _, ok := g.nodes[id]; !ok {
			return &ConfigError{Message: "interrupt after unknown node: " + id}
		}
	}
	if cycle := g.unbrokenStaticCycle(); cycle != "" {
		return &ConfigError{Message: "static edge cycle with no interrupt point through node: " + cycle}
	}
	g.compiled = true
	return nil
}

// unbrokenStaticCycle walks static edges only and reports a node on a cycle
// that contains no interrupt-after member. Such a cycle can never suspend and
// would loop until the step limit.
func (g *Graph) unbrokenStaticCycle() string {
	for start := range g.static {
		seen := map[string]bool{start: true}
		interruptible := false
		cur := start
		for {
			if g.interruptAfter[cur] {
				interruptible = true
			}
			next, ok := g.static[cur]
			if !ok || next == End {
				break
			}
			if seen[next] {
				if next == start && !interruptible {
					return start
				}
				break
			}
			seen[next] = true
			cur = next
		}
	}
	return ""
}

// resolveNext computes the node to run after nodeID given the post-merge
// state. It returns End when the run is complete.
func (g *Graph) resolveNext(nodeID string, state State) (string, error) {
	if to, ok := g.static[nodeID]; ok {
		return to, nil
	}
	ce, ok := g.conditional[nodeID]
	if !ok {
		return "", &ConfigError{Message: "no route from node: " + nodeID}
	}
	label := ce.router(state)
	to, ok := ce.targets[label]
	if !ok {
		return "", &ConfigError{Message: fmt.Sprintf("router for node %q returned undeclared label %q", nodeID, label)}
	}
	return to, nil
}

func (g *Graph) mutable() error {
	if g.compiled {
		return &ConfigError{Message: "graph is compiled and immutable"}
	}
	return nil
}
