package compiler

import (
	"sort"

	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/query"
)

// orderIndexKey is the reserved NamespacedRow field this operator
// stamps onto every currently-visible row, read back by finalize into
// Row.OrderIndex, per spec.md §4.7.1 step 9 ("a synthetic
// orderByIndex used by consumers to sort").
const orderIndexKey = "__order_index"

// orderState is this operator's per-key multiplicity bookkeeping,
// mirroring the groupEntry pattern dataflow.Consolidate/Reduce/Join
// already use: the live value and its net Delta since the stream
// began.
type orderState struct {
	value query.NamespacedRow
	delta int
}

// applyOrderLimit implements spec.md §4.7.1 step 9: ORDER BY computes
// a total order over the whole live result set and stamps each
// survivor with its index; LIMIT/OFFSET (requires ORDER BY, enforced
// by query.Builder.Build) then windows that ordering. Like
// dataflow.Reduce and dataflow.Join, this operator recomputes its full
// desired output on every change and diffs against what it last
// emitted, since a row leaving the window cannot be "un-inserted" by
// a partial fold.
func (c *Compiler) applyOrderLimit(in *dataflow.Stream, q *query.Query) (*dataflow.Stream, error) {
	if len(q.OrderBy) == 0 {
		return in, nil
	}

	cmp := orderComparator(q.OrderBy)
	limit := -1
	if q.Limit != nil {
		limit = *q.Limit
	}
	offset := 0
	if q.Offset != nil {
		offset = *q.Offset
	}

	out := dataflow.New()
	live := map[key.Key]*orderState{}
	lastEmitted := map[key.Key]query.NamespacedRow{}

	in.Subscribe(func(b dataflow.Batch) {
		for _, r := range b {
			row, ok := r.Value.(query.NamespacedRow)
			if !ok {
				continue
			}
			st, ok := live[r.Key]
			if !ok {
				st = &orderState{}
				live[r.Key] = st
			}
			st.delta += r.Delta
			st.value = row
			if st.delta <= 0 {
				delete(live, r.Key)
			}
		}

		type entry struct {
			key key.Key
			row query.NamespacedRow
		}
		all := make([]entry, 0, len(live))
		for k, st := range live {
			if st.delta > 0 {
				all = append(all, entry{key: k, row: st.value})
			}
		}
		sort.Slice(all, func(i, j int) bool { return cmp(all[i].row, all[j].row) < 0 })

		start := offset
		if start > len(all) {
			start = len(all)
		}
		end := len(all)
		if limit >= 0 {
			end = start + limit
			if end > len(all) {
				end = len(all)
			}
		}

		visible := make(map[key.Key]query.NamespacedRow, end-start)
		for i := start; i < end; i++ {
			row := cloneRow(all[i].row)
			row[orderIndexKey] = float64(i)
			visible[all[i].key] = row
		}

		var outBatch dataflow.Batch
		for k, prev := range lastEmitted {
			next, stillVisible := visible[k]
			if !stillVisible {
				outBatch = append(outBatch, dataflow.Record{Key: k, Value: prev, Delta: -1})
				continue
			}
			if key.ValuesEqual(prev, next) {
				continue
			}
			outBatch = append(outBatch, dataflow.Record{Key: k, Value: prev, Delta: -1})
			outBatch = append(outBatch, dataflow.Record{Key: k, Value: next, Delta: 1})
		}
		for k, next := range visible {
			if _, had := lastEmitted[k]; !had {
				outBatch = append(outBatch, dataflow.Record{Key: k, Value: next, Delta: 1})
			}
		}
		lastEmitted = visible
		out.Push(outBatch)
	})

	return out, nil
}

// orderComparator builds a total order from ORDER BY terms. Per
// spec.md §4.7.1 step 9 / §9's open-question note, nulls sort first by
// default regardless of direction; an explicit Nulls override flips
// that for its term only.
func orderComparator(terms []query.OrderTerm) func(a, b query.NamespacedRow) int {
	return func(a, b query.NamespacedRow) int {
		for _, t := range terms {
			av, _ := query.Eval(t.Expr, a)
			bv, _ := query.Eval(t.Expr, b)

			if av == nil || bv == nil {
				// Nulls sort first regardless of direction (spec.md
				// §4.7.1 step 9 / §9's open-question note), independent
				// of the Desc flip applied to defined values below.
				if c := nullRank(av == nil, bv == nil, t.Nulls); c != 0 {
					return c
				}
				continue
			}

			c := key.CompareValues(av, bv)
			if t.Direction == query.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

func nullRank(aNil, bNil bool, nulls query.NullsPosition) int {
	if aNil == bNil {
		return 0
	}
	first := -1
	if nulls == query.NullsLast {
		first = 1
	}
	if aNil {
		return first
	}
	return -first
}
