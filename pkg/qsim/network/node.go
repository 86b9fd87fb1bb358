package network

import "sort"

// Coord is a projected x/y coordinate, carried only for completeness
// of the data model; the engines never compute geometry from it.
type Coord struct {
	X, Y float64
}

// Node is owned by the partition that executes its node-movement step;
// all its in-links are therefore locally addressable (local or
// split-in, never split-out).
type Node struct {
	ID        uint64
	Coord     Coord
	Partition int
	InLinks   []QueueLink
	OutLinks  []Link
}

// Network is one worker's partition: every link and node it owns or
// borders, plus the deterministic node-processing order node-movement
// requires (ascending internal node id).
type Network struct {
	Nodes []*Node
	Links map[uint64]Link
}

// NewNetwork creates an empty partition network.
func NewNetwork() *Network {
	return &Network{Links: make(map[uint64]Link)}
}

// AddNode inserts n, keeping Nodes sorted by ascending ID so callers
// can rely on OrderedNodes for the deterministic node-movement order.
func (n *Network) AddNode(node *Node) {
	i := sort.Search(len(n.Nodes), func(i int) bool { return n.Nodes[i].ID >= node.ID })
	n.Nodes = append(n.Nodes, nil)
	copy(n.Nodes[i+1:], n.Nodes[i:])
	n.Nodes[i] = node
}

// AddLink registers a link by id and, if its endpoints are known
// nodes on this partition, wires it into their in/out link lists.
func (n *Network) AddLink(l Link) {
	n.Links[l.ID()] = l
	for _, node := range n.Nodes {
		if node.ID == l.To() {
			if ql, ok := l.(QueueLink); ok {
				node.InLinks = append(node.InLinks, ql)
			}
		}
		if node.ID == l.From() {
			node.OutLinks = append(node.OutLinks, l)
		}
	}
}

// OrderedNodes returns the partition's nodes in ascending id order, the
// order spec.md §4.2 requires node-movement to process them in.
func (n *Network) OrderedNodes() []*Node {
	return n.Nodes
}

// Link looks up a link by id.
func (n *Network) Link(id uint64) (Link, bool) {
	l, ok := n.Links[id]
	return l, ok
}
