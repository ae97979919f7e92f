package net

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInmemTimeout bounds an in-memory RPC when the context has no earlier
// deadline.
const DefaultInmemTimeout = time.Second

// NewInmemAddr returns a random in-memory address.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport implements the Transport interface within a single process.
// Transports reach each other through routes set up with Connect.
type InmemTransport struct {
	mu         sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	routes     map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport creates a transport listening on addr, or on a random
// address if addr is empty, and returns that address.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	return addr, &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		routes:     make(map[string]*InmemTransport),
		timeout:    DefaultInmemTimeout,
	}
}

// SetTimeout changes the per-call timeout.
func (i *InmemTransport) SetTimeout(timeout time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.timeout = timeout
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Vote implements the Transport interface.
func (i *InmemTransport) Vote(ctx context.Context, target string, args *VoteRequest, resp *VoteResponse) error {
	return inmemCall(ctx, i, target, args, resp)
}

// Announce implements the Transport interface.
func (i *InmemTransport) Announce(ctx context.Context, target string, args *AnnounceRequest, resp *AnnounceResponse) error {
	return inmemCall(ctx, i, target, args, resp)
}

// Revoke implements the Transport interface.
func (i *InmemTransport) Revoke(ctx context.Context, target string, args *RevokeRequest, resp *RevokeResponse) error {
	return inmemCall(ctx, i, target, args, resp)
}

// inmemCall hands args to the consumer of target and copies its answer into
// resp. Requests and answers are passed by pointer, without encoding.
func inmemCall[Resp any](ctx context.Context, i *InmemTransport, target string, args interface{}, resp *Resp) error {
	i.mu.RLock()
	dest, ok := i.routes[target]
	timeout := i.timeout
	i.mu.RUnlock()

	if !ok {
		return fmt.Errorf("failed to connect to peer: %v", target)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so that a late responder never blocks
	respCh := make(chan RPCResponse, 1)

	select {
	case dest.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	}

	var answer RPCResponse
	select {
	case answer = <-respCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if answer.Error != nil {
		return answer.Error
	}

	out, ok := answer.Response.(*Resp)
	if !ok {
		return fmt.Errorf("unexpected response type %T", answer.Response)
	}
	*resp = *out

	return nil
}

// Connect adds a route from this transport to t under addr.
func (i *InmemTransport) Connect(addr string, t Transport) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.routes[addr] = t.(*InmemTransport)
}

// Disconnect removes the route to addr.
func (i *InmemTransport) Disconnect(addr string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.routes, addr)
}

// DisconnectAll removes every route.
func (i *InmemTransport) DisconnectAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.routes = make(map[string]*InmemTransport)
}

// Close implements the Transport interface. It drops every route.
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen implements the Transport interface. There is nothing to start.
func (i *InmemTransport) Listen() {
}
