package ts3

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Transport owns the raw UDP socket to a TS3 server. All reads/writes cross
// this single connection; callers must not use it concurrently from more
// than one goroutine without external synchronization (the actor serializes
// all access on its own event loop).
type Transport struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// Dial opens the UDP socket to host:port. TS3's handshake is connectionless
// at the UDP layer (framing + session init happens in application data), so
// Dial only resolves the remote address and creates the local socket.
func Dial(ctx context.Context, host string, port int) (*Transport, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve ts3 address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial ts3 udp: %w", err)
	}
	return &Transport{conn: conn, addr: addr}, nil
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Send writes one framed packet.
func (t *Transport) Send(p Packet) error {
	_, err := t.conn.Write(p.Frame())
	return err
}

// TryReceive performs a non-blocking poll for one inbound datagram: the
// actor's event tick calls this repeatedly until none are ready. Returns
// (nil, nil) when nothing is available within the poll deadline.
func (t *Transport) TryReceive(pollTimeout time.Duration) ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 4096)
	n, err := t.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	payload, err := Unframe(buf[:n])
	if err != nil {
		return nil, err
	}
	return payload, nil
}
