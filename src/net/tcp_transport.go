package net

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// NewTCPTransport listens on bindAddr and returns a NetworkTransport over
// plain TCP. advertise, when set, is the address handed to leaders instead of
// the bound one. timeout bounds each vote or announce round trip, dial
// included, unless the caller's context expires first.
func NewTCPTransport(
	bindAddr string,
	advertise string,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) (*NetworkTransport, error) {

	stream, err := newTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}

	return NewNetworkTransport(stream, maxPool, timeout, logger), nil
}

// tcpStreamLayer implements StreamLayer for plain TCP.
type tcpStreamLayer struct {
	net.Listener
	advertise string
	dialer    net.Dialer
}

func newTCPStreamLayer(bindAddr, advertise string) (*tcpStreamLayer, error) {
	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	addr := list.Addr()
	if advertise != "" {
		if addr, err = net.ResolveTCPAddr("tcp", advertise); err != nil {
			list.Close()
			return nil, err
		}
	}

	// Leaders must be able to dial the advertised address
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		list.Close()
		return nil, errNotTCP
	}
	if tcpAddr.IP.IsUnspecified() {
		list.Close()
		return nil, errNotAdvertisable
	}

	return &tcpStreamLayer{
		Listener:  list,
		advertise: advertise,
	}, nil
}

// Dial implements the StreamLayer interface.
func (t *tcpStreamLayer) Dial(ctx context.Context, address string) (net.Conn, error) {
	return t.dialer.DialContext(ctx, "tcp", address)
}

// AdvertiseAddr implements the StreamLayer interface.
func (t *tcpStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.Addr().String()
}
