package shir

// ComputePreds rebuilds every node's predecessor list.
func (p *Program) ComputePreds() {
	for i := range p.Nodes {
		p.Nodes[i].Preds = p.Nodes[i].Preds[:0]
	}
	for i := range p.Nodes {
		for _, succ := range p.Nodes[i].Succs() {
			p.Nodes[succ].Preds = append(p.Nodes[succ].Preds, p.Nodes[i].ID)
		}
	}
}

// Reachable returns the nodes reachable from the entry in depth-first
// preorder.
func (p *Program) Reachable() []NodeID {
	seen := make([]bool, len(p.Nodes))
	var order []NodeID
	stack := []NodeID{p.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		order = append(order, n)
		succs := p.Nodes[n].Succs()
		for i := len(succs) - 1; i >= 0; i-- {
			if !seen[succs[i]] {
				stack = append(stack, succs[i])
			}
		}
	}
	return order
}

// InsertAfterEntry splices a new node between the entry and its successors
// and returns it.
func (p *Program) InsertAfterEntry(name string) NodeID {
	id := p.AddNode(name)
	entry := p.Node(p.Entry)
	n := p.Node(id)
	n.Edges = entry.Edges
	n.Follower = entry.Follower
	entry.Edges = nil
	entry.Follower = id
	p.ComputePreds()
	return id
}

// InsertBeforeExit splices a new node that every edge into the exit now
// passes through, and returns it.
func (p *Program) InsertBeforeExit(name string) NodeID {
	id := p.AddNode(name)
	for i := range p.Nodes {
		n := &p.Nodes[i]
		if n.ID == id {
			continue
		}
		for k := range n.Edges {
			if n.Edges[k].To == p.Exit {
				n.Edges[k].To = id
			}
		}
		if n.Follower == p.Exit {
			n.Follower = id
		}
	}
	p.Node(id).Follower = p.Exit
	p.ComputePreds()
	return id
}
