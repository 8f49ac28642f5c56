package compiler

import (
	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/optimizer"
	"github.com/samwillis/reactive-db/query"
)

// Compiler holds the named input streams (one per registered
// collection, each delivering Record{Key, Value: T}) and the
// compilation cache keyed by query.Query pointer identity, per spec.md
// §4.7.1 step 2 ("shared compilation cache keyed by IR identity") and
// testable property 6 ("compiling the same IR twice with the same
// cache returns pointer-equal streams").
type Compiler struct {
	inputs map[string]*dataflow.Stream
	cache  map[*query.Query]*dataflow.Stream
}

// New constructs a Compiler over the given named collection input
// streams.
func New(inputs map[string]*dataflow.Stream) *Compiler {
	return &Compiler{inputs: inputs, cache: map[*query.Query]*dataflow.Stream{}}
}

// Compile translates q into a dataflow pipeline emitting Record{Key,
// Value: Row, Delta}. It runs optimizer.Optimize(q) first (spec.md
// §4.7.1 step 1) and memoizes the result against q's own identity, so
// that a subquery reachable from two different outer queries compiles
// exactly once (testable property 6).
func (c *Compiler) Compile(q *query.Query) (*dataflow.Stream, error) {
	if cached, ok := c.cache[q]; ok {
		return cached, nil
	}

	optimized := optimizer.Optimize(q)

	main, err := c.resolveSource(optimized.From)
	if err != nil {
		return nil, err
	}

	for _, j := range optimized.Join {
		main, err = c.applyJoin(main, j)
		if err != nil {
			return nil, err
		}
	}

	for _, clause := range optimized.Where {
		expr := clause
		main = dataflow.Filter(main, func(r dataflow.Record) bool {
			row := r.Value.(query.NamespacedRow)
			v, err := query.Eval(expr, row)
			return err == nil && truthyAny(v)
		})
	}
	for _, pred := range optimized.FnWhere {
		p := pred
		main = dataflow.Filter(main, func(r dataflow.Record) bool {
			return p(r.Value.(query.NamespacedRow))
		})
	}

	main, err = c.applySelectAndGroup(main, optimized)
	if err != nil {
		return nil, err
	}

	main, err = c.applyOrderLimit(main, optimized)
	if err != nil {
		return nil, err
	}

	out := finalize(main)
	c.cache[q] = out
	return out, nil
}

// resolveSource implements spec.md §4.7.1 step 2: a CollectionRef
// looks up its named input stream and wraps each (key, value) as
// (key, NamespacedRow{alias: value}) per step 3; a QueryRef compiles
// recursively (through the same cache) and wraps the subquery's
// already-projected Row.Value under its alias.
func (c *Compiler) resolveSource(src query.Source) (*dataflow.Stream, error) {
	switch s := src.(type) {
	case query.CollectionRef:
		in, ok := c.inputs[s.Collection]
		if !ok {
			return nil, newError("no input stream registered for collection %q", s.Collection)
		}
		alias := s.AliasName
		return dataflow.Map(in, func(r dataflow.Record) dataflow.Record {
			return dataflow.Record{Key: r.Key, Value: query.NamespacedRow{alias: r.Value}, Delta: r.Delta}
		}), nil
	case query.QueryRef:
		sub, err := c.Compile(s.Query)
		if err != nil {
			return nil, err
		}
		alias := s.AliasName
		return dataflow.Map(sub, func(r dataflow.Record) dataflow.Record {
			row := r.Value.(Row)
			return dataflow.Record{Key: r.Key, Value: query.NamespacedRow{alias: row.Value}, Delta: r.Delta}
		}), nil
	default:
		return nil, newError("unknown source type %T", src)
	}
}

// joinSide is the value carried on each side of a re-keyed join input
// stream: the row's original key (needed to synthesize the composite
// join-result key) alongside its namespaced row.
type joinSide struct {
	origKey key.Key
	row     query.NamespacedRow
}

func joinSideValueKey(v any) string {
	js := v.(joinSide)
	return js.origKey.String() + "|" + key.ValueIdentity(js.row)
}

// applyJoin implements spec.md §4.7.1 step 4: compile the join's
// source, re-key both sides by their evaluated join expression, run
// the dataflow.Join operator for the declared kind, filter pairs
// according to join semantics, merge the namespaced rows (right side
// wins on key collision, though joined aliases are disjoint by
// construction), and synthesize a composite result key.
func (c *Compiler) applyJoin(left *dataflow.Stream, j query.Join) (*dataflow.Stream, error) {
	right, err := c.resolveSource(j.Source)
	if err != nil {
		return nil, err
	}

	leftExpr, rightExpr := j.Left, j.Right
	leftRekeyed := dataflow.Map(left, func(r dataflow.Record) dataflow.Record {
		row := r.Value.(query.NamespacedRow)
		jv, _ := query.Eval(leftExpr, row)
		return dataflow.Record{Key: key.String(key.ValueIdentity(jv)), Value: joinSide{origKey: r.Key, row: row}, Delta: r.Delta}
	})
	rightRekeyed := dataflow.Map(right, func(r dataflow.Record) dataflow.Record {
		row := r.Value.(query.NamespacedRow)
		jv, _ := query.Eval(rightExpr, row)
		return dataflow.Record{Key: key.String(key.ValueIdentity(jv)), Value: joinSide{origKey: r.Key, row: row}, Delta: r.Delta}
	})

	kind, err := dfJoinKind(j.Kind)
	if err != nil {
		return nil, err
	}

	joined := dataflow.Join(leftRekeyed, rightRekeyed, kind, joinSideValueKey)

	return dataflow.Map(joined, func(r dataflow.Record) dataflow.Record {
		pair := r.Value.(dataflow.Pair)
		merged := query.NamespacedRow{}
		var lk, rk key.Key
		if pair.LeftPresent {
			ls := pair.Left.(joinSide)
			lk = ls.origKey
			for k, v := range ls.row {
				merged[k] = v
			}
		}
		if pair.RightPresent {
			rs := pair.Right.(joinSide)
			rk = rs.origKey
			for k, v := range rs.row {
				merged[k] = v
			}
		}
		return dataflow.Record{Key: key.String(lk.String() + "|" + rk.String()), Value: merged, Delta: r.Delta}
	}), nil
}

func dfJoinKind(k query.JoinKind) (dataflow.JoinKind, error) {
	switch k {
	case query.JoinInner:
		return dataflow.Inner, nil
	case query.JoinLeft:
		return dataflow.Left, nil
	case query.JoinRight:
		return dataflow.Right, nil
	case query.JoinFull:
		return dataflow.Full, nil
	default:
		return 0, newError("unknown join kind %q", k)
	}
}

func truthyAny(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// finalize implements spec.md §4.7.1 step 10: strip the namespaced
// wrapping to (key, Row{Value: selectResults, OrderIndex}).
func finalize(in *dataflow.Stream) *dataflow.Stream {
	return dataflow.Map(in, func(r dataflow.Record) dataflow.Record {
		row := r.Value.(query.NamespacedRow)
		result := row[query.SelectResultsKey]
		oi, hasOI := row[orderIndexKey].(float64)
		return dataflow.Record{
			Key:   r.Key,
			Value: Row{Key: r.Key, Value: result, OrderIndex: oi, HasOrderIndex: hasOI},
			Delta: r.Delta,
		}
	})
}
