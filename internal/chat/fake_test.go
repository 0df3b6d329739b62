package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

// fakeStore is an in-memory docstore.Store for reconciler tests. It resolves
// server timestamps from a deterministic clock, counts Create calls per
// collection, and pushes snapshots to subscribers after every mutation.
type fakeStore struct {
	mu          sync.Mutex
	docs        map[string]map[string]map[string]any // collection -> id -> fields
	createCalls map[string]int
	nextID      int
	clock       int64

	failQuery  bool
	failCreate bool
	failWrite  bool

	subs []*fakeSub
}

type fakeSub struct {
	collection string
	filters    []docstore.Filter
	ch         chan docstore.Snapshot
	closeOnce  sync.Once
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:        make(map[string]map[string]map[string]any),
		createCalls: make(map[string]int),
	}
}

func (f *fakeStore) tick() int64 {
	f.clock += 1000
	return f.clock
}

func (f *fakeStore) resolve(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			out[k] = f.tick()
			continue
		}
		out[k] = v
	}
	return out
}

// seed inserts a document with explicit fields, bypassing Create accounting
// and sentinel resolution.
func (f *fakeStore) seed(collection, id string, fields map[string]any) {
	f.mu.Lock()
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]map[string]any)
	}
	f.docs[collection][id] = fields
	f.mu.Unlock()
	f.notify(collection)
}

func (f *fakeStore) get(collection, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[collection][id]
}

func (f *fakeStore) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQuery {
		return nil, errors.New("fake store: query refused")
	}
	return f.queryLocked(collection, filters), nil
}

func (f *fakeStore) queryLocked(collection string, filters []docstore.Filter) []docstore.Document {
	var out []docstore.Document
	for id, fields := range f.docs[collection] {
		doc := docstore.Document{
			Ref:    docstore.Ref{Collection: collection, ID: id},
			Fields: copyFields(fields),
		}
		if docstore.MatchesAll(doc, filters) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	return out
}

func (f *fakeStore) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	if f.failCreate {
		f.mu.Unlock()
		return "", errors.New("fake store: create refused")
	}
	f.createCalls[collection]++
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]map[string]any)
	}
	f.docs[collection][id] = f.resolve(fields)
	f.mu.Unlock()
	f.notify(collection)
	return id, nil
}

func (f *fakeStore) Write(_ context.Context, ref docstore.Ref, fields map[string]any, mode docstore.WriteMode) error {
	f.mu.Lock()
	if f.failWrite {
		f.mu.Unlock()
		return errors.New("fake store: write refused")
	}
	resolved := f.resolve(fields)
	if f.docs[ref.Collection] == nil {
		f.docs[ref.Collection] = make(map[string]map[string]any)
	}
	existing, ok := f.docs[ref.Collection][ref.ID]
	if mode == docstore.Merge && ok {
		for k, v := range resolved {
			existing[k] = v
		}
	} else {
		f.docs[ref.Collection][ref.ID] = resolved
	}
	f.mu.Unlock()
	f.notify(ref.Collection)
	return nil
}

func (f *fakeStore) Subscribe(collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	sub := &fakeSub{
		collection: collection,
		filters:    filters,
		ch:         make(chan docstore.Snapshot, 1),
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	emitLatest(sub.ch, docstore.Snapshot{Docs: f.queryLocked(collection, filters)})
	f.mu.Unlock()

	return docstore.NewSubscription(sub.ch, func() {
		f.mu.Lock()
		for i, s := range f.subs {
			if s == sub {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		sub.closeOnce.Do(func() { close(sub.ch) })
	}), nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) notify(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.collection != collection {
			continue
		}
		emitLatest(sub.ch, docstore.Snapshot{Docs: f.queryLocked(sub.collection, sub.filters)})
	}
}

// breakSubs delivers an error snapshot to every subscriber of collection.
func (f *fakeStore) breakSubs(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.collection == collection {
			emitLatest(sub.ch, docstore.Snapshot{Err: docstore.ErrUnavailable})
		}
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.([]string); ok {
			out[k] = append([]string(nil), s...)
			continue
		}
		out[k] = v
	}
	return out
}
