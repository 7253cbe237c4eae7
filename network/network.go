package network

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// MaxDatagram is the largest UDP payload we ever read.
const MaxDatagram = 65507

// MaxChunkPayload is the largest byte range one chunk reply may carry. Its
// base64 form plus the longest header still fits in MaxDatagram.
const MaxChunkPayload = 48000

// Backoff is the retry policy of a Requester.
type Backoff struct {
	// Initial is the first per-attempt timeout and the base time unit.
	Initial time.Duration
	// Max caps the doubled timeout.
	Max time.Duration
	// Retries is the number of resends after the first attempt.
	Retries int
}

// DefaultBackoff waits 1s, doubling to at most 32s, with 5 retries (6 attempts).
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 32 * time.Second, Retries: 5}
}

func (b Backoff) normalize() Backoff {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Retries < 0 {
		b.Retries = 0
	}
	return b
}

// next doubles d, capped at Max.
func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// ListenUDP binds a datagram socket. Port 0 picks an ephemeral port.
func ListenUDP(host string, port int) (*net.UDPConn, error) {
	if port < 0 || port > 65535 {
		return nil, errors.New("invalid port")
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

// ResolveUDP resolves host:port for sending.
func ResolveUDP(host string, port int) (*net.UDPAddr, error) {
	if host == "" || port <= 0 || port > 65535 {
		return nil, errors.New("invalid host or port")
	}
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// SameAddr reports whether two UDP addresses name the same endpoint.
func SameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
