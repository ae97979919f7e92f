package net

import (
	"context"
	"net"
)

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Vote asks the target validator whether it accepts a transaction.
	Vote(ctx context.Context, target string, args *VoteRequest, resp *VoteResponse) error

	// Announce hands a committed transaction to the target validator.
	Announce(ctx context.Context, target string, args *AnnounceRequest, resp *AnnounceResponse) error

	// Revoke tells the target validator that a transaction was revoked.
	Revoke(ctx context.Context, target string, args *RevokeRequest, resp *RevokeResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

// RPC is an incoming VoteRequest, AnnounceRequest or RevokeRequest, along with the channel
// on which the validator answers it.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// RPCResponse is a VoteResponse, AnnounceResponse or RevokeResponse, or the
// error that refused
// the request.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// Respond answers the RPC. It must be called exactly once.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}

// StreamLayer gives a NetworkTransport its connections: it accepts requests
// from leaders and dials validators.
type StreamLayer interface {
	net.Listener

	// Dial opens a connection to address. It gives up when ctx is done.
	Dial(ctx context.Context, address string) (net.Conn, error)

	// AdvertiseAddr is the address leaders use to reach this validator.
	AdvertiseAddr() string
}
