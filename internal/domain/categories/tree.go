package categories

// Materialize turns the flat, parent-referencing category set into a forest.
// Children keep the order of the input slice. Every id in flat shows up
// exactly once in the result.
//
// Categories whose parent is missing from flat, that name themselves as
// parent, or that only hang off a parent cycle are promoted to roots and
// their ids returned as orphans. Later duplicates of an id are ignored.
func Materialize(flat []*Category) (roots []*Node, orphans []int64) {
	nodes := make(map[int64]*Node, len(flat))
	order := make([]*Node, 0, len(flat))
	for _, c := range flat {
		if c == nil {
			continue
		}
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		n := &Node{Category: *c, Children: []*Node{}}
		nodes[c.ID] = n
		order = append(order, n)
	}

	roots = []*Node{}
	parentOf := make(map[int64]*Node, len(order))
	for _, n := range order {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*n.ParentID]
		if !ok || parent == n {
			roots = append(roots, n)
			orphans = append(orphans, n.ID)
			continue
		}
		parent.Children = append(parent.Children, n)
		parentOf[n.ID] = parent
	}

	// Nodes not reachable from a root sit on a parent cycle. Cutting the
	// first of them loose (in input order) makes the rest of that cycle
	// reachable again.
	reached := make(map[int64]bool, len(order))
	for _, r := range roots {
		markReachable(r, reached)
	}
	for _, n := range order {
		if reached[n.ID] {
			continue
		}
		parent := parentOf[n.ID]
		parent.Children = removeChild(parent.Children, n)
		delete(parentOf, n.ID)

		roots = append(roots, n)
		orphans = append(orphans, n.ID)
		markReachable(n, reached)
	}

	return roots, orphans
}

func markReachable(root *Node, reached map[int64]bool) {
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[n.ID] {
			continue
		}
		reached[n.ID] = true
		stack = append(stack, n.Children...)
	}
}

func removeChild(children []*Node, target *Node) []*Node {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Flatten walks a forest depth-first and returns the ids in visiting order.
func Flatten(roots []*Node) []int64 {
	var ids []int64
	stack := make([]*Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, n.ID)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return ids
}
