package topology

import (
	"fmt"
	"strings"
)

// Node is one entity in the dependency graph. Declaration order lives in
// Graph.Order, not on the node.
type Node struct {
	ID        EntityID
	DependsOn []EntityID
}

// Graph is the directed acyclic dependency graph of a topology:
// CA <- MSP <- {orderer group, peer group}, channel <- {MSP, orderer
// group}, peer group <- channel. Build it once per run; it is read-only
// afterwards.
type Graph struct {
	Nodes map[EntityID]*Node

	// Order lists all entities in declaration order.
	Order []EntityID
}

// BuildGraph derives the entity graph from a topology. It returns an
// error when the reference edges form a cycle.
func BuildGraph(t *Topology) (*Graph, error) {
	g := &Graph{Nodes: make(map[EntityID]*Node)}

	add := func(id EntityID, deps ...EntityID) {
		g.Nodes[id] = &Node{ID: id, DependsOn: deps}
		g.Order = append(g.Order, id)
	}

	for _, name := range t.caOrder {
		add(EntityID{KindCA, name})
	}
	for _, name := range t.mspOrder {
		add(EntityID{KindMSP, name}, EntityID{KindCA, t.MSPs[name].CA})
	}
	for _, name := range t.ordererOrder {
		add(EntityID{KindOrderer, name}, EntityID{KindMSP, t.Orderers[name].MSP})
	}

	// Channel artifacts need every MSP that will sign the channel and an
	// ordering service to submit the transaction to.
	for _, channel := range t.ChannelNames() {
		var deps []EntityID
		seen := make(map[EntityID]bool)
		for _, pg := range t.PeerGroupsForChannel(channel) {
			dep := EntityID{KindMSP, pg.MSP}
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
		for _, name := range t.ordererOrder {
			deps = append(deps, EntityID{KindOrderer, name})
		}
		add(EntityID{KindChannel, channel}, deps...)
	}

	// Peers join their channel, so they depend on the channel entity in
	// addition to their MSP.
	for _, name := range t.peerOrder {
		pg := t.Peers[name]
		deps := []EntityID{{KindMSP, pg.MSP}}
		if pg.ChannelName != "" {
			deps = append(deps, EntityID{KindChannel, pg.ChannelName})
		}
		add(EntityID{KindPeer, name}, deps...)
	}

	for _, node := range g.Nodes {
		for _, dep := range node.DependsOn {
			if _, ok := g.Nodes[dep]; !ok {
				return nil, fmt.Errorf("entity %s depends on undeclared entity %s", node.ID, dep)
			}
		}
	}

	if _, err := g.Layers(); err != nil {
		return nil, err
	}
	return g, nil
}

// Layers groups entities by dependency depth using Kahn's algorithm.
// Entities within a layer have no ordering constraint between them and
// are listed in declaration order. An error is returned when the graph
// contains a cycle.
func (g *Graph) Layers() ([][]EntityID, error) {
	indegree := make(map[EntityID]int, len(g.Nodes))
	dependents := make(map[EntityID][]EntityID, len(g.Nodes))
	for id, node := range g.Nodes {
		indegree[id] = len(node.DependsOn)
		for _, dep := range node.DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var layers [][]EntityID
	placed := 0
	current := g.declarationOrdered(func(id EntityID) bool { return indegree[id] == 0 })

	for len(current) > 0 {
		layers = append(layers, current)
		placed += len(current)

		next := make(map[EntityID]bool)
		for _, id := range current {
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next[dep] = true
				}
			}
		}
		current = g.declarationOrdered(func(id EntityID) bool { return next[id] })
	}

	if placed != len(g.Nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id.String())
			}
		}
		return nil, fmt.Errorf("dependency cycle involving: %s", strings.Join(stuck, ", "))
	}
	return layers, nil
}

// Dependents returns the transitive dependents of the given entity,
// i.e. every entity that cannot proceed if id fails.
func (g *Graph) Dependents(id EntityID) map[EntityID]bool {
	dependents := make(map[EntityID][]EntityID)
	for nid, node := range g.Nodes {
		for _, dep := range node.DependsOn {
			dependents[dep] = append(dependents[dep], nid)
		}
	}

	result := make(map[EntityID]bool)
	queue := []EntityID{id}
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[head] {
			if !result[dep] {
				result[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return result
}

// FilterTo reduces the graph to the target entity and its transitive
// dependencies. It is used by the deploy --target flag.
func (g *Graph) FilterTo(target EntityID) (*Graph, error) {
	if _, ok := g.Nodes[target]; !ok {
		return nil, fmt.Errorf("unknown entity %s", target)
	}

	keep := map[EntityID]bool{target: true}
	queue := []EntityID{target}
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for _, dep := range g.Nodes[head].DependsOn {
			if !keep[dep] {
				keep[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	sub := &Graph{Nodes: make(map[EntityID]*Node, len(keep))}
	for _, id := range g.Order {
		if keep[id] {
			node := *g.Nodes[id]
			sub.Nodes[id] = &node
			sub.Order = append(sub.Order, id)
		}
	}
	return sub, nil
}

// declarationOrdered returns the entities matching the predicate in
// declaration order.
func (g *Graph) declarationOrdered(match func(EntityID) bool) []EntityID {
	var ids []EntityID
	for _, id := range g.Order {
		if match(id) {
			ids = append(ids, id)
		}
	}
	return ids
}
