package stateflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

// DumpDot renders the graph as GraphViz text. rankdir, when non-empty, is
// emitted as the graph's rank direction. A node with fewer output states
// than embedStatesThreshold carries its state labels inside the node;
// otherwise states annotate the outgoing edges. Flow edges render solid,
// plain dependency edges dashed.
func (g *Graph) DumpDot(rankdir string, embedStatesThreshold int) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	if rankdir != "" {
		fmt.Fprintf(&sb, "  rankdir=%s;\n", rankdir)
	}

	for _, n := range g.nodes {
		label := n.Name()
		if !n.isInitial {
			label = fmt.Sprintf("%s #%d", n.Meta.Name, n.Rec.LaunchID)
		}
		embed := n.Meta.OutputStates.Cardinality() < embedStatesThreshold
		if embed && n.Meta.OutputStates.Cardinality() > 0 {
			states := make([]string, 0, n.Meta.OutputStates.Cardinality())
			for s := range n.Meta.OutputStates.Iter() {
				states = append(states, s.String())
			}
			sort.Strings(states)
			label += "\\n" + strings.Join(states, "\\n")
		}
		shape := "ellipse"
		if n.isInitial {
			shape = "box"
		}
		style := ""
		if n.Executed() {
			style = ", style=filled, fillcolor=gray"
		}
		fmt.Fprintf(&sb, "  n%d [label=\"%s\", shape=%s%s];\n", n.nodeID, label, shape, style)
	}

	for _, n := range g.nodes {
		embed := n.Meta.OutputStates.Cardinality() < embedStatesThreshold
		n.OutputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
			targets := nodes.Values()
			sort.Slice(targets, func(i, j int) bool { return targets[i].nodeID < targets[j].nodeID })
			for _, to := range targets {
				attrs := make([]string, 0, 2)
				if !n.HasStateFlow(s, to) {
					attrs = append(attrs, "style=dashed")
				}
				if !embed {
					attrs = append(attrs, fmt.Sprintf("label=\"%s\"", s))
				}
				if len(attrs) > 0 {
					fmt.Fprintf(&sb, "  n%d -> n%d [%s];\n", n.nodeID, to.nodeID, strings.Join(attrs, ", "))
				} else {
					fmt.Fprintf(&sb, "  n%d -> n%d;\n", n.nodeID, to.nodeID)
				}
			}
			return true
		})
	}

	sb.WriteString("}\n")
	return sb.String()
}

// String lists every node line by line followed by its outgoing edges.
// Useful for debugging.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, n := range g.nodes {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
		n.OutputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
			targets := nodes.Values()
			sort.Slice(targets, func(i, j int) bool { return targets[i].nodeID < targets[j].nodeID })
			for _, to := range targets {
				kind := "dep"
				if n.HasStateFlow(s, to) {
					kind = "flow"
				}
				fmt.Fprintf(&sb, "  -(%s:%s)-> %s\n", s, kind, to)
			}
			return true
		})
	}
	return sb.String()
}
