package dataflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
)

func TestMapPreservesDelta(t *testing.T) {
	in := dataflow.New()
	out := dataflow.Map(in, func(r dataflow.Record) dataflow.Record {
		r.Value = r.Value.(int) * 2
		return r
	})

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	in.Push(dataflow.Batch{{Key: key.Int(1), Value: 5, Delta: 1}})
	require.Len(t, got, 1)
	require.Equal(t, 10, got[0].Value)
	require.Equal(t, 1, got[0].Delta)
}

func TestFilterDropsNonMatching(t *testing.T) {
	in := dataflow.New()
	out := dataflow.Filter(in, func(r dataflow.Record) bool { return r.Value.(int) > 2 })

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	in.Push(dataflow.Batch{
		{Key: key.Int(1), Value: 1, Delta: 1},
		{Key: key.Int(2), Value: 3, Delta: 1},
	})
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].Value)
}

func TestConsolidateMergesWithinBatch(t *testing.T) {
	in := dataflow.New()
	out := dataflow.Consolidate(in, dataflow.DefaultValueKey)

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	in.Push(dataflow.Batch{
		{Key: key.Int(1), Value: "a", Delta: 1},
		{Key: key.Int(1), Value: "a", Delta: -1},
		{Key: key.Int(1), Value: "a", Delta: 1},
	})
	require.Len(t, got, 1)
	require.Equal(t, 1, got[0].Delta)
}

func TestConsolidateRetractsAcrossBatches(t *testing.T) {
	in := dataflow.New()
	out := dataflow.Consolidate(in, dataflow.DefaultValueKey)

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	in.Push(dataflow.Batch{{Key: key.Int(1), Value: "a", Delta: 1}})
	in.Push(dataflow.Batch{{Key: key.Int(1), Value: "a", Delta: -1}})

	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].Delta)
	require.Equal(t, -1, got[1].Delta)
}

func TestInnerJoinMatchesOnKey(t *testing.T) {
	left := dataflow.New()
	right := dataflow.New()
	out := dataflow.Join(left, right, dataflow.Inner, dataflow.DefaultValueKey)

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	left.Push(dataflow.Batch{{Key: key.Int(1), Value: "L1", Delta: 1}})
	require.Empty(t, got)

	right.Push(dataflow.Batch{{Key: key.Int(1), Value: "R1", Delta: 1}})
	require.Len(t, got, 1)
	pair := got[0].Value.(dataflow.Pair)
	require.Equal(t, "L1", pair.Left)
	require.Equal(t, "R1", pair.Right)
	require.Equal(t, 1, got[0].Delta)
}

func TestLeftJoinEmitsUnmatchedThenRetracts(t *testing.T) {
	left := dataflow.New()
	right := dataflow.New()
	out := dataflow.Join(left, right, dataflow.Left, dataflow.DefaultValueKey)

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	left.Push(dataflow.Batch{{Key: key.Int(1), Value: "L1", Delta: 1}})
	require.Len(t, got, 1)
	require.False(t, got[0].Value.(dataflow.Pair).RightPresent)

	got = nil
	right.Push(dataflow.Batch{{Key: key.Int(1), Value: "R1", Delta: 1}})
	require.Len(t, got, 2)
	deltasBySign := map[int]int{}
	for _, r := range got {
		deltasBySign[r.Delta]++
	}
	require.Equal(t, 1, deltasBySign[-1])
	require.Equal(t, 1, deltasBySign[1])
}

func TestReduceRecomputesOnRetraction(t *testing.T) {
	in := dataflow.New()
	out := dataflow.Reduce(in, func(r dataflow.Record) key.Key { return r.Key }, func(members []dataflow.GroupMember) any {
		total := 0
		for _, m := range members {
			total += m.Value.(int) * m.Delta
		}
		return total
	})

	var got dataflow.Batch
	dataflow.Output(out, func(b dataflow.Batch) { got = append(got, b...) })

	in.Push(dataflow.Batch{
		{Key: key.Int(1), Value: 10, Delta: 1},
		{Key: key.Int(1), Value: 20, Delta: 1},
	})
	require.Len(t, got, 1)
	require.Equal(t, 30, got[0].Value)

	got = nil
	in.Push(dataflow.Batch{{Key: key.Int(1), Value: 10, Delta: -1}})
	require.Len(t, got, 2)
	require.Equal(t, 30, got[0].Value)
	require.Equal(t, -1, got[0].Delta)
	require.Equal(t, 20, got[1].Value)
	require.Equal(t, 1, got[1].Delta)
}
