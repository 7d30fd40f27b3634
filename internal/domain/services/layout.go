package services

import (
	"fmt"
	"math"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
)

// GenerationCounting selects which end of the tree is generation 0.
type GenerationCounting string

const (
	// CountFromRoots puts persons without parents at generation 0.
	CountFromRoots GenerationCounting = "roots"
	// CountFromLeaves puts persons without children at generation 0.
	CountFromLeaves GenerationCounting = "leaves"
)

// ParseGenerationCounting converts a string to a GenerationCounting.
func ParseGenerationCounting(s string) (GenerationCounting, error) {
	switch GenerationCounting(s) {
	case "", CountFromRoots:
		return CountFromRoots, nil
	case CountFromLeaves:
		return CountFromLeaves, nil
	default:
		return "", fmt.Errorf("invalid generation counting %q (valid: roots, leaves)", s)
	}
}

// LayoutOptions controls layout assignment.
type LayoutOptions struct {
	Counting    GenerationCounting
	NodeWidth   float64
	LevelHeight float64
}

// DefaultLayoutOptions returns root-down counting on a 200x150 grid.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		Counting:    CountFromRoots,
		NodeWidth:   200,
		LevelHeight: 150,
	}
}

// NodePosition places a person or union in the layout.
type NodePosition struct {
	ID         string  `json:"id"`
	Union      bool    `json:"union,omitempty"`
	Generation float64 `json:"generation"`
	Slot       int     `json:"slot"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Warning kinds reported by the layout.
const (
	WarningCycle = "cycle"
)

// LayoutWarning reports a data integrity problem found while laying out.
type LayoutWarning struct {
	Kind      string   `json:"kind"`
	PersonIDs []string `json:"person_ids"`
	Message   string   `json:"message"`
}

// Layout is the result of LayoutAssigner.Assign.
type Layout struct {
	Counting    GenerationCounting      `json:"counting"`
	Nodes       []NodePosition          `json:"nodes"`
	Generations map[string]int          `json:"generations"`
	Unions      map[string]float64      `json:"union_generations"`
	Warnings    []LayoutWarning         `json:"warnings"`
	byID        map[string]NodePosition `json:"-"`
}

// Position returns the placement of a person or union.
func (l *Layout) Position(id string) (NodePosition, bool) {
	p, ok := l.byID[id]
	return p, ok
}

// LayoutAssigner assigns generations and grid positions to persons and unions.
type LayoutAssigner struct {
	registry *registry.Registry
}

// NewLayoutAssigner creates a new LayoutAssigner.
func NewLayoutAssigner(reg *registry.Registry) *LayoutAssigner {
	return &LayoutAssigner{registry: reg}
}

// layoutGraph is an index arena over the persons being laid out.
type layoutGraph struct {
	ids      []string
	index    map[string]int
	parents  [][]int
	children [][]int
}

func (a *LayoutAssigner) buildGraph(persons []entities.Person, conns []entities.Connection) *layoutGraph {
	g := &layoutGraph{
		ids:      make([]string, 0, len(persons)),
		index:    make(map[string]int, len(persons)),
		parents:  make([][]int, len(persons)),
		children: make([][]int, len(persons)),
	}
	for i := range persons {
		if _, dup := g.index[persons[i].ID]; dup {
			continue
		}
		g.index[persons[i].ID] = len(g.ids)
		g.ids = append(g.ids, persons[i].ID)
	}
	g.parents = g.parents[:len(g.ids)]
	g.children = g.children[:len(g.ids)]

	seen := make(map[[2]int]bool)
	for i := range conns {
		c := &conns[i]
		var parentID, childID string
		switch {
		case a.registry.IsParentRole(c.Type):
			parentID, childID = c.FromPersonID, c.ToPersonID
		case a.registry.IsChildRole(c.Type):
			parentID, childID = c.ToPersonID, c.FromPersonID
		default:
			continue
		}
		p, okP := g.index[parentID]
		ch, okC := g.index[childID]
		if !okP || !okC || p == ch || seen[[2]int{p, ch}] {
			continue
		}
		seen[[2]int{p, ch}] = true
		g.parents[ch] = append(g.parents[ch], p)
		g.children[p] = append(g.children[p], ch)
	}
	return g
}

// Assign computes generations with an iterative topological pass. Persons
// caught in a parent cycle are placed one below their assigned parents and
// reported as a cycle warning.
func (a *LayoutAssigner) Assign(persons []entities.Person, conns []entities.Connection, unions []entities.UnionNode, opts LayoutOptions) *Layout {
	if opts.Counting == "" {
		opts.Counting = CountFromRoots
	}
	g := a.buildGraph(persons, conns)

	// Counting from leaves walks the same graph with edges reversed.
	up, down := g.parents, g.children
	if opts.Counting == CountFromLeaves {
		up, down = g.children, g.parents
	}

	n := len(g.ids)
	gen := make([]int, n)
	assigned := make([]bool, n)
	pending := make([]int, n)
	order := make([]int, 0, n)

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pending[i] = len(up[i])
		if pending[i] == 0 {
			queue = append(queue, i)
		}
	}

	layout := &Layout{
		Counting:    opts.Counting,
		Nodes:       []NodePosition{},
		Generations: make(map[string]int, n),
		Unions:      make(map[string]float64, len(unions)),
		Warnings:    []LayoutWarning{},
		byID:        make(map[string]NodePosition, n+len(unions)),
	}

	drain := func() {
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !assigned[cur] {
				gen[cur] = maxAssigned(up[cur], gen, assigned)
				assigned[cur] = true
				order = append(order, cur)
			}
			for _, next := range down[cur] {
				pending[next]--
				if pending[next] == 0 && !assigned[next] {
					queue = append(queue, next)
				}
			}
		}
	}
	drain()

	// Whatever is left sits on or below a cycle. Break the cycles at their
	// first member in input order, then finish the persons below them.
	cyclic := cycleMembers(assigned, down)
	var cycleIDs []string
	for _, i := range cyclic {
		cycleIDs = append(cycleIDs, g.ids[i])
	}
	for _, i := range cyclic {
		if !assigned[i] {
			queue = append(queue, i)
			drain()
		}
	}
	for i := 0; i < n; i++ {
		if !assigned[i] {
			queue = append(queue, i)
			drain()
		}
	}
	if len(cycleIDs) > 0 {
		layout.Warnings = append(layout.Warnings, LayoutWarning{
			Kind:      WarningCycle,
			PersonIDs: cycleIDs,
			Message:   fmt.Sprintf("parent relationships form a cycle through %d person(s)", len(cycleIDs)),
		})
	}

	slots := make(map[float64]int)
	place := func(id string, union bool, generation float64) {
		slot := slots[generation]
		slots[generation] = slot + 1
		pos := NodePosition{
			ID:         id,
			Union:      union,
			Generation: generation,
			Slot:       slot,
			X:          float64(slot) * opts.NodeWidth,
			Y:          generation * opts.LevelHeight,
		}
		layout.Nodes = append(layout.Nodes, pos)
		layout.byID[id] = pos
	}

	for _, i := range order {
		layout.Generations[g.ids[i]] = gen[i]
		place(g.ids[i], false, float64(gen[i]))
	}

	for i := range unions {
		u := &unions[i]
		generation := unionGeneration(u.ParentIDs, layout.Generations, opts.Counting)
		layout.Unions[u.ID] = generation
		place(u.ID, true, generation)
	}

	return layout
}

// unionGeneration places a union half a generation from its parents
// towards their children.
func unionGeneration(parentIDs []string, generations map[string]int, counting GenerationCounting) float64 {
	if counting == CountFromLeaves {
		lowest := math.Inf(1)
		for _, p := range parentIDs {
			if pg, ok := generations[p]; ok {
				lowest = math.Min(lowest, float64(pg))
			}
		}
		if math.IsInf(lowest, 1) {
			return 0.5
		}
		return lowest - 0.5
	}

	highest := math.Inf(-1)
	for _, p := range parentIDs {
		if pg, ok := generations[p]; ok {
			highest = math.Max(highest, float64(pg))
		}
	}
	if math.IsInf(highest, -1) {
		return 0.5
	}
	return highest + 0.5
}

// cycleMembers returns the unassigned persons that lie on a cycle, in index
// order. Persons that only hang below a cycle are trimmed away by repeatedly
// dropping those without an unassigned successor.
func cycleMembers(assigned []bool, down [][]int) []int {
	n := len(assigned)
	inSet := make([]bool, n)
	outDegree := make([]int, n)
	for i := 0; i < n; i++ {
		inSet[i] = !assigned[i]
	}
	predecessors := make([][]int, n)
	for i := 0; i < n; i++ {
		if !inSet[i] {
			continue
		}
		for _, next := range down[i] {
			if inSet[next] {
				outDegree[i]++
				predecessors[next] = append(predecessors[next], i)
			}
		}
	}

	var stack []int
	for i := 0; i < n; i++ {
		if inSet[i] && outDegree[i] == 0 {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		inSet[cur] = false
		for _, prev := range predecessors[cur] {
			outDegree[prev]--
			if outDegree[prev] == 0 && inSet[prev] {
				stack = append(stack, prev)
			}
		}
	}

	var result []int
	for i := 0; i < n; i++ {
		if inSet[i] {
			result = append(result, i)
		}
	}
	return result
}

// maxAssigned returns one more than the highest generation among the
// already assigned neighbors, or 0 when none are assigned.
func maxAssigned(neighbors []int, gen []int, assigned []bool) int {
	result := 0
	for _, nb := range neighbors {
		if assigned[nb] && gen[nb]+1 > result {
			result = gen[nb] + 1
		}
	}
	return result
}
