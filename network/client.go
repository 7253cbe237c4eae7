package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoResponse is returned once the retry budget is spent without an accepted reply.
var ErrNoResponse = errors.New("no response")

// MatchFunc decides whether a datagram received from the target answers the
// outstanding request. Rejected datagrams are dropped and the wait continues.
type MatchFunc func(reply []byte) bool

// Requester runs request/response exchanges over one UDP socket with
// timeout, exponential backoff and a fixed retry budget. One exchange at a time.
type Requester struct {
	conn    *net.UDPConn
	backoff Backoff
	log     zerolog.Logger

	mu    sync.Mutex
	sends atomic.Int64
	buf   []byte
}

// NewRequester wraps conn. The Requester does not own conn; Close is the caller's.
func NewRequester(conn *net.UDPConn, backoff Backoff, log zerolog.Logger) *Requester {
	return &Requester{
		conn:    conn,
		backoff: backoff.normalize(),
		log:     log,
		buf:     make([]byte, MaxDatagram),
	}
}

// Sends returns how many datagrams have been written so far.
func (r *Requester) Sends() int64 { return r.sends.Load() }

// LocalAddr is the address replies are expected on.
func (r *Requester) LocalAddr() net.Addr { return r.conn.LocalAddr() }

// Request sends msg to target and returns the first accepted reply.
// A nil match accepts any datagram from target. The timeout starts from
// Backoff.Initial on every call.
func (r *Requester) Request(ctx context.Context, msg []byte, target *net.UDPAddr, match MatchFunc) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// unblock a pending read as soon as ctx is done
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	timeout := r.backoff.Initial
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := r.exchange(ctx, msg, target, match, timeout)
		if err == nil {
			return reply, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if attempt >= r.backoff.Retries {
			r.log.Debug().Err(err).Str("target", target.String()).Int("attempts", attempt+1).Msg("retry budget exhausted")
			return nil, ErrNoResponse
		}
		timeout = r.backoff.next(timeout)
		r.log.Debug().Err(err).Str("target", target.String()).Int("attempt", attempt+1).Dur("next_timeout", timeout).Msg("no reply, backing off")
		if err := sleep(ctx, timeout); err != nil {
			return nil, err
		}
	}
}

// Notify sends msg once without waiting for a reply.
func (r *Requester) Notify(msg []byte, target *net.UDPAddr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends.Add(1)
	_, err := r.conn.WriteToUDP(msg, target)
	return err
}

// exchange performs one attempt: a single send followed by reads until an
// accepted reply or the attempt deadline.
func (r *Requester) exchange(ctx context.Context, msg []byte, target *net.UDPAddr, match MatchFunc, timeout time.Duration) ([]byte, error) {
	r.sends.Add(1)
	if _, err := r.conn.WriteToUDP(msg, target); err != nil {
		// treat like a lost datagram: wait out the attempt before the caller retries
		_ = sleep(ctx, timeout)
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer r.conn.SetReadDeadline(time.Time{})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		n, from, err := r.conn.ReadFromUDP(r.buf)
		if err != nil {
			return nil, err
		}
		if !SameAddr(from, target) {
			r.log.Debug().Str("from", from.String()).Msg("dropping datagram from unexpected peer")
			continue
		}
		reply := make([]byte, n)
		copy(reply, r.buf[:n])
		if match != nil && !match(reply) {
			r.log.Debug().Int("len", n).Msg("dropping stale reply")
			continue
		}
		return reply, nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
