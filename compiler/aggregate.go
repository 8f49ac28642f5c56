package compiler

import (
	"sort"

	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/query"
)

const havingPassKey = "__having_pass"

// applySelectAndGroup implements spec.md §4.7.1 steps 7-8: SELECT
// projection, then explicit or implicit GROUP BY with HAVING.
func (c *Compiler) applySelectAndGroup(in *dataflow.Stream, q *query.Query) (*dataflow.Stream, error) {
	grouped := len(q.GroupBy) > 0 || selectHasAggregate(q)
	if !grouped {
		return dataflow.Map(in, func(r dataflow.Record) dataflow.Record {
			row := r.Value.(query.NamespacedRow)
			result := projectRow(q, row)
			out := cloneRow(row)
			out[query.SelectResultsKey] = result
			return dataflow.Record{Key: r.Key, Value: out, Delta: r.Delta}
		}), nil
	}

	groupKeyFn := func(r dataflow.Record) key.Key {
		row := r.Value.(query.NamespacedRow)
		if len(q.GroupBy) == 0 {
			return key.String("") // implicit group-by: single empty-tuple group.
		}
		vals := make([]any, len(q.GroupBy))
		for i, e := range q.GroupBy {
			vals[i], _ = query.Eval(e, row)
		}
		return key.String(key.ValueIdentity(vals))
	}

	combine := func(members []dataflow.GroupMember) any {
		rows := make([]query.NamespacedRow, len(members))
		for i, m := range members {
			rows[i] = m.Value.(query.NamespacedRow)
		}
		representative := rows[0]

		out := cloneRow(representative)
		result := map[string]any{}
		if q.FnSelect != nil {
			result = toMap(q.FnSelect(representative))
		} else if q.Select != nil {
			explicit, spreads := splitSelectFields(q.Select)
			for field, expr := range explicit {
				v, err := evalOnGroup(expr, rows)
				if err != nil {
					continue
				}
				result[field] = v
			}
			for _, expr := range spreads {
				v, _ := evalOnGroup(expr, rows)
				mergeMissing(result, toMap(v))
			}
		} else {
			result = toMap(representative)
		}
		out[query.SelectResultsKey] = result

		pass := true
		for _, h := range q.Having {
			v, err := evalOnGroup(h, rows)
			if err != nil || !truthyAny(v) {
				pass = false
				break
			}
		}
		if pass {
			for _, p := range q.FnHaving {
				if !p(representative) {
					pass = false
					break
				}
			}
		}
		out[havingPassKey] = pass
		return out
	}

	reduced := dataflow.Reduce(in, groupKeyFn, combine)
	return dataflow.Filter(reduced, func(r dataflow.Record) bool {
		row, ok := r.Value.(query.NamespacedRow)
		return ok && truthyAny(row[havingPassKey])
	}), nil
}

func selectHasAggregate(q *query.Query) bool {
	for _, e := range q.Select {
		if query.HasAggregate(e) {
			return true
		}
	}
	return false
}

// projectRow implements the non-grouped SELECT of spec.md §4.7.1 step
// 7: fnSelect wins if set; else the projection map (explicit fields
// first, then spread sentinels filling in only missing keys); else,
// with no join and no group-by, default to the main alias's record;
// else the namespaced row itself.
func projectRow(q *query.Query, row query.NamespacedRow) any {
	if q.FnSelect != nil {
		return q.FnSelect(row)
	}
	if q.Select != nil {
		explicit, spreads := splitSelectFields(q.Select)
		result := map[string]any{}
		for field, expr := range explicit {
			v, _ := query.Eval(expr, row)
			result[field] = v
		}
		for _, expr := range spreads {
			v, _ := query.Eval(expr, row)
			mergeMissing(result, toMap(v))
		}
		return result
	}
	if len(q.Join) == 0 {
		return row[q.From.Alias()]
	}
	return row
}

// spreadPrefix marks a SELECT field key as a reserved spread sentinel
// per spec.md §4.7.1 step 7 ("Keys starting with a reserved spread
// sentinel expand the aliased table into the result").
const spreadPrefix = "..."

func splitSelectFields(fields map[string]query.Expr) (explicit map[string]query.Expr, spreads []query.Expr) {
	explicit = map[string]query.Expr{}
	for k, e := range fields {
		if len(k) > len(spreadPrefix) && k[:len(spreadPrefix)] == spreadPrefix {
			spreads = append(spreads, e)
			continue
		}
		explicit[k] = e
	}
	return explicit, spreads
}

func mergeMissing(dst, src map[string]any) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func toMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	if nr, ok := v.(query.NamespacedRow); ok {
		return map[string]any(nr)
	}
	return map[string]any{"value": v}
}

func cloneRow(row query.NamespacedRow) query.NamespacedRow {
	out := make(query.NamespacedRow, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// evalOnGroup evaluates expr against a group's member rows, resolving
// Agg nodes via the aggregate semantics of spec.md §4.7.2, evaluating a
// Func's arguments recursively over the group, and delegating
// everything else (Ref, Value) to the first member's row, since a
// non-aggregated, non-grouped reference is not otherwise well-defined
// once rows have been folded into a group.
func evalOnGroup(expr query.Expr, rows []query.NamespacedRow) (any, error) {
	agg, ok := expr.(query.Agg)
	if !ok {
		if fn, ok := expr.(query.Func); ok {
			args := make([]any, len(fn.Args))
			for i, a := range fn.Args {
				v, err := evalOnGroup(a, rows)
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			return query.ApplyFunc(fn.Name, args)
		}
		return query.Eval(expr, rows[0])
	}

	values := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := query.Eval(agg.Arg, row)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}
	return aggregate(agg.Op, values)
}

// aggregate implements spec.md §4.7.2: count/sum/avg/min/max ignore
// nil; median/mode operate over the non-null set with mode returning
// the smallest value on a tie.
func aggregate(op query.AggOp, values []any) (any, error) {
	switch op {
	case query.AggCount:
		return len(values), nil
	case query.AggSum:
		var sum float64
		for _, v := range values {
			sum += asFloat(v)
		}
		return sum, nil
	case query.AggAvg:
		if len(values) == 0 {
			return nil, nil
		}
		var sum float64
		for _, v := range values {
			sum += asFloat(v)
		}
		return sum / float64(len(values)), nil
	case query.AggMin:
		return extremum(values, -1), nil
	case query.AggMax:
		return extremum(values, 1), nil
	case query.AggMedian:
		return median(values), nil
	case query.AggMode:
		return mode(values), nil
	default:
		return nil, newError("unknown aggregate %q", op)
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}

func extremum(values []any, want int) any {
	if len(values) == 0 {
		return nil
	}
	best := values[0]
	for _, v := range values[1:] {
		if key.CompareValues(v, best)*want > 0 {
			best = v
		}
	}
	return best
}

func median(values []any) any {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]any(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return key.CompareValues(sorted[i], sorted[j]) < 0 })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (asFloat(sorted[n/2-1]) + asFloat(sorted[n/2])) / 2
}

func mode(values []any) any {
	if len(values) == 0 {
		return nil
	}
	counts := map[string]int{}
	reps := map[string]any{}
	for _, v := range values {
		k := key.ValueIdentity(v)
		counts[k]++
		reps[k] = v
	}
	var best any
	bestCount := -1
	for k, cnt := range counts {
		v := reps[k]
		if cnt > bestCount || (cnt == bestCount && key.CompareValues(v, best) < 0) {
			best = v
			bestCount = cnt
		}
	}
	return best
}
