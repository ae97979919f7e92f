package net

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kinds of request carried by the transport. They also tag the signed
// envelope of each request, so a signature is bound to one kind.
const (
	kindVote     = "vote"
	kindAnnounce = "announce"
	kindRevoke   = "revoke"
)

const bufSize = 64 * 1024

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

// requestFrame is one request on the wire. Body holds a VoteRequest, an
// AnnounceRequest or a RevokeRequest depending on Kind.
type requestFrame struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// responseFrame answers a requestFrame. Error is the validator's refusal, if
// any; Body is the matching response.
type responseFrame struct {
	Error string          `json:"error,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

/*
NetworkTransport carries vote, announce and revoke requests between a leader and its
validators over a StreamLayer. Every message is a single JSON frame; a
connection serves requests one at a time and is pooled once its response has
been read.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	stream  StreamLayer
	pool    *connPool
	timeout time.Duration

	consumeCh chan RPC

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

type netConn struct {
	target string
	conn   net.Conn
	w      *bufio.Writer
	dec    *json.Decoder
	enc    *json.Encoder
}

func newNetConn(target string, conn net.Conn) *netConn {
	w := bufio.NewWriterSize(conn, bufSize)
	return &netConn{
		target: target,
		conn:   conn,
		w:      w,
		dec:    json.NewDecoder(bufio.NewReaderSize(conn, bufSize)),
		enc:    json.NewEncoder(w),
	}
}

// connPool keeps up to max idle connections per validator.
type connPool struct {
	sync.Mutex
	max   int
	conns map[string][]*netConn
}

func (p *connPool) take(target string) *netConn {
	p.Lock()
	defer p.Unlock()

	conns := p.conns[target]
	if len(conns) == 0 {
		return nil
	}
	last := len(conns) - 1
	conn := conns[last]
	conns[last] = nil
	p.conns[target] = conns[:last]
	return conn
}

// put keeps conn for reuse, or closes it if the pool for its target is full.
func (p *connPool) put(conn *netConn) {
	p.Lock()
	defer p.Unlock()

	if p.conns != nil && len(p.conns[conn.target]) < p.max {
		p.conns[conn.target] = append(p.conns[conn.target], conn)
		return
	}
	conn.conn.Close()
}

// drain closes every pooled connection. Later calls to put close their
// connection straight away.
func (p *connPool) drain() {
	p.Lock()
	defer p.Unlock()

	for _, conns := range p.conns {
		for _, c := range conns {
			c.conn.Close()
		}
	}
	p.conns = nil
}

// NewNetworkTransport creates a transport over stream. maxPool is the number of
// idle connections kept per validator. timeout bounds each call; an earlier
// context deadline takes precedence.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &NetworkTransport{
		logger:     logger,
		stream:     stream,
		pool:       &connPool{max: maxPool, conns: make(map[string][]*netConn)},
		timeout:    timeout,
		consumeCh:  make(chan RPC),
		shutdownCh: make(chan struct{}),
	}
}

// Close stops listening and releases pooled connections. It can be called
// more than once.
func (n *NetworkTransport) Close() error {
	var err error
	n.shutdownOnce.Do(func() {
		close(n.shutdownCh)
		err = n.stream.Close()
		n.pool.drain()
	})
	return err
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	if addr := n.stream.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown reports whether Close was called.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Vote implements the Transport interface.
func (n *NetworkTransport) Vote(ctx context.Context, target string, args *VoteRequest, resp *VoteResponse) error {
	return n.call(ctx, target, kindVote, args, resp)
}

// Announce implements the Transport interface.
func (n *NetworkTransport) Announce(ctx context.Context, target string, args *AnnounceRequest, resp *AnnounceResponse) error {
	return n.call(ctx, target, kindAnnounce, args, resp)
}

// Revoke implements the Transport interface.
func (n *NetworkTransport) Revoke(ctx context.Context, target string, args *RevokeRequest, resp *RevokeResponse) error {
	return n.call(ctx, target, kindRevoke, args, resp)
}

// deadline returns the earliest of the transport timeout and the context
// deadline. The zero time means no deadline.
func (n *NetworkTransport) deadline(ctx context.Context) time.Time {
	var d time.Time
	if n.timeout > 0 {
		d = time.Now().Add(n.timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// conn returns a pooled connection to target, or dials one before deadline.
func (n *NetworkTransport) conn(ctx context.Context, target string, deadline time.Time) (*netConn, error) {
	if conn := n.pool.take(target); conn != nil {
		return conn, nil
	}

	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	conn, err := n.stream.Dial(ctx, target)
	if err != nil {
		return nil, err
	}

	return newNetConn(target, conn), nil
}

// call sends one request to target and decodes the answer into resp. A
// refusal by the validator is returned as is; transport failures are wrapped
// with the target, unless ctx ended first.
func (n *NetworkTransport) call(ctx context.Context, target, kind string, args, resp interface{}) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(args)
	if err != nil {
		return err
	}

	deadline := n.deadline(ctx)

	conn, err := n.conn(ctx, target, deadline)
	if err != nil {
		return n.callError(ctx, target, errors.Wrap(err, "dialing"))
	}

	// Pooled connections may carry a stale deadline
	conn.conn.SetDeadline(deadline)

	stop := watchContext(ctx, conn.conn)
	frame, err := roundTrip(conn, &requestFrame{Kind: kind, Body: body})
	stop()

	if err != nil {
		conn.conn.Close()
		return n.callError(ctx, target, err)
	}

	n.pool.put(conn)

	if frame.Error != "" {
		return errors.New(frame.Error)
	}

	if len(frame.Body) == 0 {
		return nil
	}
	return json.Unmarshal(frame.Body, resp)
}

func roundTrip(conn *netConn, req *requestFrame) (*responseFrame, error) {
	if err := conn.enc.Encode(req); err != nil {
		return nil, err
	}
	if err := conn.w.Flush(); err != nil {
		return nil, err
	}

	var frame responseFrame
	if err := conn.dec.Decode(&frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// callError prefers the context error when the call was aborted by it.
func (n *NetworkTransport) callError(ctx context.Context, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errors.Wrapf(err, "rpc to %s", target)
}

// watchContext unblocks any pending I/O on conn when ctx is done. The returned
// function stops the watch and waits for it to exit.
func watchContext(ctx context.Context, conn net.Conn) func() {
	if ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// Listen accepts connections from leaders until the transport is closed.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}

		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		go n.serve(conn)
	}
}

// serve answers the requests of one leader connection until it is closed.
func (n *NetworkTransport) serve(c net.Conn) {
	defer c.Close()

	conn := newNetConn(c.RemoteAddr().String(), c)

	for {
		var req requestFrame
		if err := conn.dec.Decode(&req); err != nil {
			if err != io.EOF && !n.IsShutdown() {
				n.logger.WithField("error", err).Error("Failed to decode incoming request")
			}
			return
		}

		resp, err := n.dispatch(&req)
		if err != nil {
			if err != ErrTransportShutdown {
				n.logger.WithFields(logrus.Fields{
					"kind":  req.Kind,
					"error": err,
				}).Error("Failed to handle incoming request")
			}
			return
		}

		if err := conn.enc.Encode(resp); err != nil {
			return
		}
		if err := conn.w.Flush(); err != nil {
			if !n.IsShutdown() {
				n.logger.WithField("error", err).Error("Failed to flush response")
			}
			return
		}
	}
}

// dispatch hands a request to the consumer and waits for its answer.
func (n *NetworkTransport) dispatch(req *requestFrame) (*responseFrame, error) {
	var cmd interface{}
	switch req.Kind {
	case kindVote:
		cmd = new(VoteRequest)
	case kindAnnounce:
		cmd = new(AnnounceRequest)
	case kindRevoke:
		cmd = new(RevokeRequest)
	default:
		return nil, fmt.Errorf("unknown request kind %q", req.Kind)
	}

	if err := json.Unmarshal(req.Body, cmd); err != nil {
		return nil, err
	}

	respCh := make(chan RPCResponse, 1)

	select {
	case n.consumeCh <- RPC{Command: cmd, RespChan: respCh}:
	case <-n.shutdownCh:
		return nil, ErrTransportShutdown
	}

	var resp RPCResponse
	select {
	case resp = <-respCh:
	case <-n.shutdownCh:
		return nil, ErrTransportShutdown
	}

	frame := &responseFrame{}
	if resp.Error != nil {
		frame.Error = resp.Error.Error()
	}
	if resp.Response != nil {
		body, err := json.Marshal(resp.Response)
		if err != nil {
			return nil, err
		}
		frame.Body = body
	}

	return frame, nil
}
