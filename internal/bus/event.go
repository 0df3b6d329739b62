package bus

import "time"

// Event kinds used in this application:
//
//	doc.changed    - a document store collection changed (payload: string collection path)
//	auth.changed   - the signed-in account changed (payload: the new account, nil on sign-out)
//	compose.state  - the composer state machine moved (payload: compose.Change)
//	conn.lost      - the remote store connection dropped (payload: error)
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
