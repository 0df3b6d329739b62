package sqlitedoc

import (
	"context"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

// Subscribe emits the full matching result set immediately and again after
// every change to the collection. Snapshots are conflated: if the consumer
// lags, intermediate snapshots are replaced by the newest one rather than
// queued.
func (s *Store) Subscribe(collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	if s.bus == nil {
		return nil, docstore.ErrUnavailable
	}

	events, unsub := s.bus.Subscribe("doc.changed", 64)
	out := make(chan docstore.Snapshot, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer close(out)
		emit(out, s.snapshot(ctx, collection, filters))
		for {
			select {
			case evt := <-events:
				changed, _ := evt.Payload.(string)
				if changed != collection {
					continue
				}
				emit(out, s.snapshot(ctx, collection, filters))
			case <-ctx.Done():
				return
			}
		}
	}()

	return docstore.NewSubscription(out, func() {
		unsub()
		cancel()
	}), nil
}

func (s *Store) snapshot(ctx context.Context, collection string, filters []docstore.Filter) docstore.Snapshot {
	docs, err := s.Query(ctx, collection, filters...)
	if err != nil {
		return docstore.Snapshot{Err: err}
	}
	return docstore.Snapshot{Docs: docs}
}

// emit delivers snap without blocking, discarding the stale buffered snapshot
// if the consumer has not caught up.
func emit(out chan docstore.Snapshot, snap docstore.Snapshot) {
	for {
		select {
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
