package remote

import "github.com/gindriliunas/whatsapp-clone/internal/docstore"

// Frame ops. Client-initiated ops carry a correlation id; the server answers
// with a result or error frame bearing the same id. Subscription snapshots
// reuse the subscribe frame's id for the lifetime of the subscription.
const (
	opQuery       = "query"
	opCreate      = "create"
	opWrite       = "write"
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opResult      = "result"
	opError       = "error"
	opSnapshot    = "snapshot"
)

// sentinelKey marks a server timestamp sentinel on the wire. The server
// replaces the marker object with its clock at commit.
const sentinelKey = "__server_timestamp__"

type wireFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type wireDoc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type frame struct {
	Op         string         `json:"op"`
	ID         string         `json:"id"`
	Collection string         `json:"collection,omitempty"`
	DocID      string         `json:"doc_id,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Filters    []wireFilter   `json:"filters,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Docs       []wireDoc      `json:"docs,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func encodeFilters(filters []docstore.Filter) []wireFilter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]wireFilter, len(filters))
	for i, f := range filters {
		out[i] = wireFilter{Field: f.Field, Op: string(f.Op), Value: f.Value}
	}
	return out
}

// encodeFields rewrites server timestamp sentinels into their wire marker.
func encodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			out[k] = map[string]any{sentinelKey: true}
			continue
		}
		out[k] = v
	}
	return out
}

func decodeDocs(collection string, docs []wireDoc) []docstore.Document {
	out := make([]docstore.Document, len(docs))
	for i, d := range docs {
		out[i] = docstore.Document{
			Ref:    docstore.Ref{Collection: collection, ID: d.ID},
			Fields: d.Fields,
		}
	}
	return out
}

func modeString(mode docstore.WriteMode) string {
	if mode == docstore.Replace {
		return "replace"
	}
	return "merge"
}
