package controllers

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"udpfetch/backend/app/services"
	"udpfetch/backend/global"
	"udpfetch/network"
)

const DefaultIdleTimeout = 2 * time.Minute

type SessionOptions struct {
	// Host the data sockets bind to.
	Host         string
	IdleTimeout  time.Duration
	BindAttempts int
}

// ControlController turns DOWNLOAD requests into running sessions.
type ControlController struct {
	Storage   *services.StorageService
	Ports     *services.PortAllocator
	Transfers *services.TransferService
	Opts      SessionOptions

	wg     sync.WaitGroup
	active atomic.Int64

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// sessionKey identifies a download by requesting address and file name.
type sessionKey struct {
	client string
	file   string
}

func NewControlController(storage *services.StorageService, ports *services.PortAllocator, transfers *services.TransferService, opts SessionOptions) *ControlController {
	if transfers == nil {
		transfers = services.NewTransferService(nil, nil)
	}
	return &ControlController{
		Storage:   storage,
		Ports:     ports,
		Transfers: transfers,
		Opts:      opts,
		sessions:  make(map[sessionKey]*Session),
	}
}

// HandleControl handles one datagram from the control socket. It returns
// as soon as the session goroutine is started.
func (c *ControlController) HandleControl(ctx context.Context, conn *net.UDPConn, from *net.UDPAddr, payload []byte) {
	msg, err := network.Parse(payload)
	if err != nil || msg.Kind != network.MsgDownload {
		global.Logger.Debug().Str("from", from.String()).Int("len", len(payload)).Msg("ignoring non-download control datagram")
		return
	}
	if !network.ValidFileName(msg.FileName) {
		global.Logger.Warn().Str("from", from.String()).Str("file", msg.FileName).Msg("rejecting unusable file name")
		return
	}

	key := sessionKey{client: from.String(), file: msg.FileName}
	c.mu.Lock()
	if prev, ok := c.sessions[key]; ok {
		c.mu.Unlock()
		c.resendGrant(conn, from, prev)
		return
	}
	sess := newSession(c, conn, from, msg.FileName)
	c.sessions[key] = sess
	c.mu.Unlock()

	c.wg.Add(1)
	c.active.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.active.Add(-1)
		defer c.forget(key)
		defer func() {
			if r := recover(); r != nil {
				global.Logger.Error().Str("session", sess.ID).Interface("panic", r).Msg("session crashed")
			}
		}()
		sess.Run(ctx)
	}()
}

// resendGrant answers a retransmitted DOWNLOAD with the grant already issued.
// While the first request is still being prepared the duplicate is dropped.
func (c *ControlController) resendGrant(conn *net.UDPConn, from *net.UDPAddr, sess *Session) {
	g := sess.Grant()
	if g == nil {
		global.Logger.Debug().Str("session", sess.ID).Str("from", from.String()).Msg("download already in progress, dropping duplicate")
		return
	}
	if err := network.Reply(conn, from, g); err != nil {
		global.Logger.Warn().Err(err).Str("session", sess.ID).Msg("resend grant failed")
		return
	}
	global.Logger.Debug().Str("session", sess.ID).Int("port", g.Port).Msg("re-sent grant for retransmitted download")
}

func (c *ControlController) forget(key sessionKey) {
	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
}

// Active is the number of sessions still running.
func (c *ControlController) Active() int64 { return c.active.Load() }

// Wait blocks until every started session has exited.
func (c *ControlController) Wait() { c.wg.Wait() }
