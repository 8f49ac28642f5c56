package compiler

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/samwillis/reactive-db/query"
)

// Explain renders q's compiled operator pipeline (source -> join ->
// filter -> select -> group-by -> order-by/limit -> output) as a
// Graphviz DOT graph, for debugging a live query the way the
// `erigon` pack repo uses emicklei/dot to render execution graphs.
// It walks the same IR Explain describes and never influences
// compiled semantics.
func Explain(q *query.Query) string {
	g := dot.NewGraph(dot.Directed)
	last := explainSource(g, q.From)

	for i, j := range q.Join {
		side := explainSource(g, j.Source)
		joinNode := g.Node(fmt.Sprintf("join[%d]: %s", i, j.Kind)).Box()
		g.Edge(last, joinNode)
		g.Edge(side, joinNode)
		last = joinNode
	}

	for i := range q.Where {
		node := g.Node(fmt.Sprintf("filter[%d]", i))
		g.Edge(last, node)
		last = node
	}
	for i := range q.FnWhere {
		node := g.Node(fmt.Sprintf("fnFilter[%d]", i))
		g.Edge(last, node)
		last = node
	}

	if q.Select != nil || q.FnSelect != nil {
		node := g.Node("select")
		g.Edge(last, node)
		last = node
	}

	if len(q.GroupBy) > 0 || selectHasAggregate(q) {
		node := g.Node("groupBy+having")
		g.Edge(last, node)
		last = node
	}

	if len(q.OrderBy) > 0 {
		label := "orderBy"
		if q.Limit != nil || q.Offset != nil {
			label = "orderBy+limit"
		}
		node := g.Node(label)
		g.Edge(last, node)
		last = node
	}

	output := g.Node("output").Box()
	g.Edge(last, output)

	return g.String()
}

func explainSource(g *dot.Graph, src query.Source) dot.Node {
	switch s := src.(type) {
	case query.CollectionRef:
		return g.Node(fmt.Sprintf("collection:%s as %s", s.Collection, s.AliasName))
	case query.QueryRef:
		sub := g.Node(fmt.Sprintf("subquery as %s", s.AliasName))
		inner := explainSource(g, s.Query.From)
		g.Edge(inner, sub)
		return sub
	default:
		return g.Node("unknown source")
	}
}
