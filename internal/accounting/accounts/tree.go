package accounts

// BuildTree turns a flat account list into a forest in a single pass over an
// id index. Accounts whose parent is missing or belongs to another company are
// treated as roots. Sibling order follows the input order.
func BuildTree(list []Account) []*Node {
	index := make(map[int64]*Node, len(list))
	for i := range list {
		index[list[i].ID] = &Node{Account: list[i]}
	}
	roots := make([]*Node, 0)
	for i := range list {
		node := index[list[i].ID]
		pid := list[i].ParentID
		if pid == nil || *pid == list[i].ID {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*pid]
		if !ok || parent.Account.CompanyID != list[i].CompanyID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Walk visits nodes depth first, passing the depth of each node.
func Walk(nodes []*Node, fn func(n *Node, depth int)) {
	var visit func([]*Node, int)
	visit = func(level []*Node, depth int) {
		for _, n := range level {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(nodes, 0)
}
