package pgreplica

import "encoding/json"

// wal2jsonColumn is one column of a wal2json format-version 2 change
// message: {"name": "id", "type": "integer", "value": 1}.
type wal2jsonColumn struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// wal2jsonMessage is one decoded wal2json (format-version 2) payload:
// one row-level change per message, rather than the format-version 1
// style of batching an entire transaction's changes under one "change"
// array. Action is "B"/"C" (transaction begin/commit, ignored by this
// driver) or "I"/"U"/"D" (insert/update/delete).
type wal2jsonMessage struct {
	Action  string           `json:"action"`
	Schema  string           `json:"schema"`
	Table   string           `json:"table"`
	Columns []wal2jsonColumn `json:"columns"`
	Identity []wal2jsonColumn `json:"identity"`
}

func decodeWal2json(data []byte) (*wal2jsonMessage, error) {
	var msg wal2jsonMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, newError("decoding wal2json payload: %v", err)
	}
	return &msg, nil
}

// asRow collapses a wal2json column list into the plain map[string]any
// shape this driver's collections store rows as.
func asRow(cols []wal2jsonColumn) map[string]any {
	row := make(map[string]any, len(cols))
	for _, c := range cols {
		row[c.Name] = c.Value
	}
	return row
}
