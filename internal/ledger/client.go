package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/greenbond/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// requestTimeout is the default per-call deadline when the caller's
	// context has none.
	requestTimeout = 20 * time.Second
)

// Client is a single session against a ledger node. Sessions are opened per
// flow and closed when the flow finishes; they are not shared or pooled.
type Client interface {
	ServerInfo(ctx context.Context) (ServerInfo, error)
	AccountInfo(ctx context.Context, address string) (AccountInfo, error)
	AccountLines(ctx context.Context, address string) ([]TrustLine, error)
	LedgerIndex(ctx context.Context) (uint32, error)
	BookOffers(ctx context.Context, takerGets, takerPays domain.AssetAmount, limit int) ([]domain.Offer, error)
	Autofill(ctx context.Context, intent domain.TransactionIntent, expiryWindow uint32) (PreparedTx, error)
	Submit(ctx context.Context, txBlob string) (SubmitResult, error)
	Close() error
}

// Dialer opens a fresh session. Flows hold the session only for the duration
// of one operation.
type Dialer func(ctx context.Context) (Client, error)

// NewDialer returns a Dialer that connects WSClients to endpoint.
func NewDialer(endpoint string, networkID uint32, logger *slog.Logger) Dialer {
	return func(ctx context.Context) (Client, error) {
		c := NewWSClient(endpoint, networkID, logger)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// pendingReply carries one correlated response from the read loop to the
// caller that issued the request.
type pendingReply struct {
	resp rpcResponse
	err  error
}

// WSClient is a WebSocket JSON-RPC session. Requests carry a monotonically
// increasing id; the read loop routes each response back to the waiting
// caller by that id.
type WSClient struct {
	endpoint  string
	networkID uint32
	log       *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan pendingReply
	nextID  uint64
	closed  bool

	// done is closed when the session shuts down.
	done chan struct{}
}

// NewWSClient creates a session for endpoint. Call Connect before use.
func NewWSClient(endpoint string, networkID uint32, logger *slog.Logger) *WSClient {
	return &WSClient{
		endpoint:  endpoint,
		networkID: networkID,
		log:       logger.With("component", "ledger"),
		pending:   make(map[uint64]chan pendingReply),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrSessionClosed
	}
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("ledger: connect %s: %w", c.endpoint, err)
	}
	c.conn = conn

	go c.readLoop()

	c.log.Debug("session opened", "endpoint", c.endpoint)
	return nil
}

// Close shuts down the session. Any in-flight calls fail with
// ErrSessionClosed.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	for id, ch := range c.pending {
		ch <- pendingReply{err: domain.ErrSessionClosed}
		delete(c.pending, id)
	}

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// call issues one command and waits for its correlated response. params are
// merged into the request envelope.
func (c *WSClient) call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan pendingReply, 1)
	c.pending[id] = ch

	msg := map[string]any{"id": id, "command": command}
	for k, v := range params {
		msg[k] = v
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(msg)
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("ledger: %s: write: %w", command, err)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("ledger: %s: %w", command, ctx.Err())
	case reply := <-ch:
		if reply.err != nil {
			return nil, fmt.Errorf("ledger: %s: %w", command, reply.err)
		}
		if reply.resp.Status == "error" {
			return nil, fmt.Errorf("ledger: %s: %s (%s)", command, reply.resp.ErrorMessage, reply.resp.ErrorCode)
		}
		return reply.resp.Result, nil
	}
}

// readLoop reads responses and routes them to waiting callers. Unsolicited
// messages (stream events this client never subscribes to) are dropped.
func (c *WSClient) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.failAll(err)
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			c.log.Warn("unparseable message", "error", err)
			continue
		}
		if resp.ID == 0 {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- pendingReply{resp: resp}
		}
	}
}

// failAll delivers err to every waiting caller after a read failure.
func (c *WSClient) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.log.Debug("session read failed", "error", err)
	}
	for id, ch := range c.pending {
		ch <- pendingReply{err: err}
		delete(c.pending, id)
	}
}
