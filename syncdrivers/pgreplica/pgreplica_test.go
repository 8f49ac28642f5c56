package pgreplica

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/key"
)

func TestDecodeWal2jsonInsert(t *testing.T) {
	payload := []byte(`{
		"action": "I",
		"schema": "public",
		"table": "todos",
		"columns": [
			{"name": "id", "type": "integer", "value": 1},
			{"name": "title", "type": "text", "value": "write tests"}
		]
	}`)

	msg, err := decodeWal2json(payload)
	require.NoError(t, err)
	require.Equal(t, "I", msg.Action)
	require.Equal(t, "todos", msg.Table)

	row := asRow(msg.Columns)
	require.Equal(t, "write tests", row["title"])
	require.EqualValues(t, 1, row["id"])
}

func TestDecodeWal2jsonDeleteUsesIdentity(t *testing.T) {
	payload := []byte(`{
		"action": "D",
		"schema": "public",
		"table": "todos",
		"identity": [{"name": "id", "type": "integer", "value": 7}]
	}`)

	msg, err := decodeWal2json(payload)
	require.NoError(t, err)
	require.Equal(t, "D", msg.Action)
	require.Nil(t, msg.Columns)

	identity := asRow(msg.Identity)
	require.EqualValues(t, 7, identity["id"])
}

func TestDecodeWal2jsonMalformedPayload(t *testing.T) {
	_, err := decodeWal2json([]byte(`not json`))
	require.Error(t, err)
}

func TestApplyWal2jsonInsertThenUpdateThenDelete(t *testing.T) {
	var events []string
	var begun, committed int
	sc := &collection.SyncContext[map[string]any]{
		Begin:  func() { begun++ },
		Commit: func() { committed++ },
		Write: func(w collection.SyncWrite[map[string]any]) {
			events = append(events, w.Type.String())
		},
	}

	d := &driver{
		cfg: Config{
			GetKey: func(row map[string]any) key.Key {
				return key.Int(int64(row["id"].(float64)))
			},
		},
		sc:      sc,
		present: mapset.NewThreadUnsafeSet[key.Key](),
	}

	require.NoError(t, d.applyWal2json([]byte(`{"action":"I","columns":[{"name":"id","value":1},{"name":"title","value":"a"}]}`)))
	require.NoError(t, d.applyWal2json([]byte(`{"action":"U","columns":[{"name":"id","value":1},{"name":"title","value":"b"}]}`)))
	require.NoError(t, d.applyWal2json([]byte(`{"action":"D","identity":[{"name":"id","value":1}]}`)))

	require.Equal(t, []string{"insert", "update", "delete"}, events)
	require.Equal(t, 3, begun)
	require.Equal(t, 3, committed)
	require.Equal(t, 0, d.present.Cardinality())
}

func TestParseAndFormatLSNRoundTrip(t *testing.T) {
	lsn, err := parseLSN("16/B374D848")
	require.NoError(t, err)
	require.Equal(t, "16/B374D848", formatLSN(lsn))
}

func TestParseLSNRejectsMalformedInput(t *testing.T) {
	_, err := parseLSN("not-an-lsn")
	require.Error(t, err)
}
