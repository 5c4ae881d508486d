package airtable

import (
	"encoding/json"
	"testing"
)

func TestRecordCreatedTimePassesThrough(t *testing.T) {
	cases := []string{
		`{"id":"rec1","createdTime":"2024-01-02T03:04:05.000Z","fields":{"Name":"a"}}`,
		`{"id":"rec2","createdTime":"2024-05-01T10:00:00.123Z","fields":{}}`,
		`{"id":"rec3","fields":{"B":1,"A":2}}`,
	}
	for _, input := range cases {
		var rec Record
		if err := json.Unmarshal([]byte(input), &rec); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		out, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != input {
			t.Fatalf("record changed in transit:\nwant %s\ngot  %s", input, out)
		}
	}
}
