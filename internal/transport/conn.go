package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	waBinary "go.mau.fi/whatsmeow/binary"

	"github.com/danmuck/newsletter/internal/protocol/frame"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

// NotificationHandler receives every inbound node that answers no pending
// request. It runs on the read loop and must not block.
type NotificationHandler func(node *waBinary.Node)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn is a framed node stream. It is safe for concurrent use.
type Conn struct {
	rwc     io.ReadWriteCloser
	cfg     Config
	log     zerolog.Logger
	handler NotificationHandler

	idPrefix string
	counter  atomic.Uint64

	writeMu sync.Mutex
	pending *pendingTable

	closeOnce sync.Once
	closed    chan struct{}
	errMu     sync.Mutex
	closeErr  error
}

// New wraps rwc and starts its read loop. handler may be nil.
func New(rwc io.ReadWriteCloser, cfg Config, handler NotificationHandler, log zerolog.Logger) *Conn {
	c := &Conn{
		rwc:      rwc,
		cfg:      cfg.WithDefaults(),
		log:      log.With().Str("component", "transport").Logger(),
		handler:  handler,
		idPrefix: uuid.NewString()[:8],
		pending:  newPendingTable(),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// GenerateRequestID returns an id unique for the life of the connection.
func (c *Conn) GenerateRequestID() string {
	return c.idPrefix + "." + strconv.FormatUint(c.counter.Add(1), 10)
}

// SendIQ writes node and blocks until the response with the same id arrives.
// A type="error" response is returned as *IQError.
func (c *Conn) SendIQ(ctx context.Context, node waBinary.Node) (*waBinary.Node, error) {
	id, _ := tree.Attr(&node, "id")
	if id == "" {
		return nil, ErrMissingID
	}
	select {
	case <-c.closed:
		return nil, c.err()
	default:
	}

	ch, err := c.pending.add(id, node.Tag, time.Now())
	if err != nil {
		return nil, err
	}
	defer c.pending.remove(id)

	if err := c.write(node); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.ResponseTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if typ, _ := tree.Attr(resp, "type"); typ == "error" {
			return nil, iqError(resp)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: id=%s after %s", ErrTimeout, id, c.cfg.ResponseTimeout)
	case <-c.closed:
		return nil, c.err()
	}
}

// Pending returns the requests currently awaiting a response, ordered by id.
func (c *Conn) Pending() []PendingRequest {
	return c.pending.list()
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Conn) write(node waBinary.Node) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := c.rwc.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := WriteNode(c.rwc, node, 0, c.cfg.Limits); err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			return err
		}
		c.shutdown(err)
		return c.err()
	}
	return nil
}

func (c *Conn) readLoop() {
	for {
		node, h, err := ReadNode(c.rwc, c.cfg.Limits)
		if err != nil {
			var de decodeError
			if errors.As(err, &de) {
				c.log.Warn().Err(err).Msg("dropping undecodable frame")
				continue
			}
			c.shutdown(err)
			return
		}
		c.route(node, h)
	}
}

func (c *Conn) route(node *waBinary.Node, h frame.Header) {
	if h.Flags&frame.FlagNotification == 0 && node.Tag == "iq" {
		if id, ok := tree.Attr(node, "id"); ok && c.pending.resolve(id, node) {
			return
		}
	}
	if c.handler == nil {
		c.log.Debug().Str("tag", node.Tag).Msg("unhandled inbound node")
		return
	}
	c.handler(node)
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.closeErr = cause
		c.errMu.Unlock()
		close(c.closed)
		_ = c.rwc.Close()
		if cause != nil && !errors.Is(cause, io.EOF) {
			c.log.Warn().Err(cause).Msg("connection closed")
		} else {
			c.log.Debug().Msg("connection closed")
		}
	})
}

func (c *Conn) err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.closeErr == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.closeErr)
}

func iqError(resp *waBinary.Node) error {
	out := &IQError{}
	errNode, ok := tree.FindChild(resp, "error")
	if !ok {
		return out
	}
	if raw, ok := tree.Attr(&errNode, "code"); ok {
		out.Code, _ = strconv.Atoi(raw)
	}
	out.Text, _ = tree.Attr(&errNode, "text")
	return out
}
