package keel

// DependencyGraph is the static dependency graph of the components of one
// kernel, keyed by component key.
type DependencyGraph struct {
	edges map[string][]string
	keys  []string // insertion order
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{edges: make(map[string][]string)}
}

// AddNode records key and the keys it depends on. Adding a key again
// replaces its edges but keeps its original position.
func (g *DependencyGraph) AddNode(key string, dependencies []string) {
	if _, exists := g.edges[key]; !exists {
		g.keys = append(g.keys, key)
	}

	g.edges[key] = dependencies
}

// GetDependencies returns the keys that key depends on.
func (g *DependencyGraph) GetDependencies(key string) []string {
	return g.edges[key]
}

// HasNode reports whether key was added.
func (g *DependencyGraph) HasNode(key string) bool {
	_, ok := g.edges[key]

	return ok
}

type mark uint8

const (
	unvisited mark = iota
	inProgress
	done
)

// TopologicalSort orders keys so that every key comes after its
// dependencies. Independent keys keep insertion order. Edges to keys that
// were never added are ignored. A cycle is reported with its full path.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	marks := make(map[string]mark, len(g.keys))
	result := make([]string, 0, len(g.keys))

	var (
		path  []string
		visit func(key string) error
	)

	visit = func(key string) error {
		deps, known := g.edges[key]
		if !known {
			return nil
		}

		switch marks[key] {
		case done:
			return nil
		case inProgress:
			for i, p := range path {
				if p == key {
					cycle := append(append([]string{}, path[i:]...), key)

					return ErrCircularDependency(cycle)
				}
			}
		}

		marks[key] = inProgress
		path = append(path, key)

		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		marks[key] = done
		result = append(result, key)

		return nil
	}

	for _, key := range g.keys {
		if err := visit(key); err != nil {
			return nil, err
		}
	}

	return result, nil
}
