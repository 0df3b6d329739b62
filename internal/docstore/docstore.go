// Package docstore defines the document store contract the messaging core is
// built against. A store holds schemaless documents grouped into collections
// (nested collections are addressed by slash-joined paths, e.g.
// "chats/<id>/messages"), supports filtered one-shot queries, merge/replace
// writes, and push-based snapshot subscriptions. Timestamps are assigned by
// the store at commit time via the ServerTimestamp sentinel; until the write
// commits, readers observe the field as absent.
package docstore

import (
	"context"
	"errors"
	"time"
)

// FieldID is the pseudo-field name that matches a document's id in filters,
// allowing single-document subscriptions and lookups through the same API.
const FieldID = "__name__"

// ErrUnavailable is returned (or delivered on a snapshot) when the store
// cannot be reached.
var ErrUnavailable = errors.New("document store unavailable")

// serverTimestamp is the sentinel type; use the ServerTimestamp value.
type serverTimestamp struct{}

// ServerTimestamp is a write-time sentinel the store resolves to an
// authoritative timestamp when the write commits.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the server timestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// WriteMode selects how Write applies fields to an existing document.
type WriteMode int

const (
	// Merge updates the given fields and leaves the rest of the document intact.
	Merge WriteMode = iota
	// Replace overwrites the whole document with the given fields.
	Replace
)

// Op is a filter comparison operator.
type Op string

const (
	Eq            Op = "=="
	ArrayContains Op = "array-contains"
)

// Filter restricts a query or subscription to matching documents.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// Document is a point-in-time view of a stored document. Fields hold JSON-ish
// values: strings, bools, numbers (int64 or float64), []any, and nested maps.
// Timestamps are unix milliseconds.
type Document struct {
	Ref    Ref
	Fields map[string]any
}

// String returns the named field as a string, or "" if absent or not a string.
func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Strings returns the named field as a string slice, tolerating both []string
// and the []any shape produced by JSON decoding.
func (d Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int returns the named field as an int64, accepting the numeric shapes a
// JSON round-trip can produce. Returns 0 if absent.
func (d Document) Int(key string) int64 {
	switch v := d.Fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Time interprets the named field as unix milliseconds. An absent field (in
// particular an unresolved server timestamp) yields the zero time.
func (d Document) Time(key string) time.Time {
	ms := d.Int(key)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Snapshot is one delivery of a subscription's current result set. Docs carry
// no ordering guarantee; consumers sort client-side. A non-nil Err means the
// subscription is broken and Docs must be disregarded.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live snapshot stream with an explicit teardown. After
// Cancel returns no further snapshots are delivered and C is closed.
type Subscription struct {
	C      <-chan Snapshot
	cancel func()
}

// NewSubscription wraps a snapshot channel and teardown func. Intended for
// Store implementations.
func NewSubscription(ch <-chan Snapshot, cancel func()) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

// Cancel tears the subscription down. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Store is the collaborator contract any compliant document store satisfies.
type Store interface {
	// Query returns the documents of a collection matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Create stores a new document with a store-assigned id and returns it.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Write applies fields to an existing document (or creates it on Merge).
	Write(ctx context.Context, ref Ref, fields map[string]any, mode WriteMode) error

	// Subscribe delivers the full matching result set now and after every
	// change to the collection.
	Subscribe(collection string, filters ...Filter) (*Subscription, error)

	// Close releases the store's resources.
	Close() error
}

// Matches reports whether doc satisfies the filter. Shared by store
// implementations that evaluate filters client-side.
func Matches(doc Document, f Filter) bool {
	if f.Field == FieldID {
		want, _ := f.Value.(string)
		return f.Op == Eq && doc.Ref.ID == want
	}
	switch f.Op {
	case Eq:
		return equalValue(doc.Fields[f.Field], f.Value)
	case ArrayContains:
		for _, e := range doc.Strings(f.Field) {
			if equalValue(e, f.Value) {
				return true
			}
		}
	}
	return false
}

// MatchesAll reports whether doc satisfies every filter.
func MatchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !Matches(doc, f) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	// Numeric fields may come back as float64 after a JSON round-trip.
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
