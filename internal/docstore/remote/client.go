// Package remote implements docstore.Store against the hosted document
// backend. All operations share one websocket connection: request/response
// ops are correlated by id, subscription snapshots are pushed by the server
// until an unsubscribe frame. Reconnection is not attempted here; when the
// connection drops every open subscription receives an error snapshot and
// pending calls fail with docstore.ErrUnavailable, which the layers above
// surface as lost connectivity.
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

const writeTimeout = 10 * time.Second

// Client implements docstore.Store over a websocket connection.
type Client struct {
	conn   *websocket.Conn
	bus    *bus.Bus
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan frame        // call id -> response
	subs    map[string]*subState         // subscription id -> sink
	closed  bool
}

type subState struct {
	collection string
	ch         chan docstore.Snapshot
}

// Dial connects to the hosted store and starts the read loop. Auth is carried
// as a bearer token on the handshake request.
func Dial(ctx context.Context, url, token string, b *bus.Bus, logger *zap.Logger) (*Client, error) {
	header := map[string][]string{}
	if token != "" {
		header["Authorization"] = []string{"Bearer " + token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		bus:     b,
		logger:  logger,
		pending: make(map[string]chan frame),
		subs:    make(map[string]*subState),
	}
	go c.readLoop()
	return c, nil
}

// Close tears the connection down. Open subscriptions receive an error
// snapshot and are closed.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.fail(docstore.ErrUnavailable)
	return err
}

// Query issues a one-shot filtered read.
func (c *Client) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	resp, err := c.call(ctx, frame{
		Op:         opQuery,
		Collection: collection,
		Filters:    encodeFilters(filters),
	})
	if err != nil {
		return nil, err
	}
	return decodeDocs(collection, resp.Docs), nil
}

// Create stores a new document; the server assigns and returns its id.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	resp, err := c.call(ctx, frame{
		Op:         opCreate,
		Collection: collection,
		Fields:     encodeFields(fields),
	})
	if err != nil {
		return "", err
	}
	return resp.DocID, nil
}

// Write applies fields to an existing document.
func (c *Client) Write(ctx context.Context, ref docstore.Ref, fields map[string]any, mode docstore.WriteMode) error {
	_, err := c.call(ctx, frame{
		Op:         opWrite,
		Collection: ref.Collection,
		DocID:      ref.ID,
		Mode:       modeString(mode),
		Fields:     encodeFields(fields),
	})
	return err
}

// Subscribe registers a server-side listener; the server pushes the full
// matching result set on registration and after every change.
func (c *Client) Subscribe(collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	id := uuid.New().String()
	ch := make(chan docstore.Snapshot, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, docstore.ErrUnavailable
	}
	c.subs[id] = &subState{collection: collection, ch: ch}
	c.mu.Unlock()

	if err := c.send(frame{
		Op:         opSubscribe,
		ID:         id,
		Collection: collection,
		Filters:    encodeFilters(filters),
	}); err != nil {
		c.dropSub(id)
		return nil, err
	}

	return docstore.NewSubscription(ch, func() {
		// Best effort; the server also reaps listeners on disconnect.
		_ = c.send(frame{Op: opUnsubscribe, ID: id})
		c.dropSub(id)
	}), nil
}

func (c *Client) dropSub(id string) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// call sends a request frame and waits for the matching response.
func (c *Client) call(ctx context.Context, f frame) (frame, error) {
	f.ID = uuid.New().String()
	respCh := make(chan frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return frame{}, docstore.ErrUnavailable
	}
	c.pending[f.ID] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.send(f); err != nil {
		return frame{}, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return frame{}, docstore.ErrUnavailable
		}
		if resp.Op == opError {
			return frame{}, fmt.Errorf("%w: %s", docstore.ErrUnavailable, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (c *Client) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.logger.Warn("store connection lost", zap.Error(err))
			if c.bus != nil {
				c.bus.Publish(bus.Event{Kind: "conn.lost", Timestamp: time.Now(), Payload: err})
			}
			c.fail(fmt.Errorf("%w: %v", docstore.ErrUnavailable, err))
			return
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	switch f.Op {
	case opSnapshot:
		c.mu.Lock()
		sub, ok := c.subs[f.ID]
		c.mu.Unlock()
		if !ok {
			return
		}
		snap := docstore.Snapshot{Docs: decodeDocs(sub.collection, f.Docs)}
		if f.Error != "" {
			snap = docstore.Snapshot{Err: fmt.Errorf("%w: %s", docstore.ErrUnavailable, f.Error)}
		}
		select {
		case sub.ch <- snap:
		default:
			// Slow consumer; drop rather than stall the read loop.
		}
	case opResult, opError:
		c.mu.Lock()
		respCh, ok := c.pending[f.ID]
		c.mu.Unlock()
		if ok {
			respCh <- f
		}
	}
}

// fail closes every pending call and subscription with err.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	subs := c.subs
	c.pending = make(map[string]chan frame)
	c.subs = make(map[string]*subState)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	for _, sub := range subs {
		select {
		case sub.ch <- docstore.Snapshot{Err: err}:
		default:
		}
		close(sub.ch)
	}
}
