package controllers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"udpfetch/backend/app/models"
	"udpfetch/backend/app/services"
	"udpfetch/backend/global"
	"udpfetch/network"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrBindFailed = errors.New("cannot bind data port")

type SessionState uint8

const (
	StateCreated SessionState = iota
	StateGranting
	StateServing
	StateNotFound
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateGranting:
		return "granting"
	case StateServing:
		return "serving"
	case StateNotFound:
		return "not_found"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session serves one file to one client over its own data port.
type Session struct {
	ID       string
	FileName string
	Client   *net.UDPAddr

	ctrl    *ControlController
	control *net.UDPConn
	data    *net.UDPConn
	port    int
	size    int64
	rec     *models.TransferRecord
	log     zerolog.Logger

	mu    sync.Mutex
	state SessionState
	grant *network.Message
}

func newSession(ctrl *ControlController, control *net.UDPConn, client *net.UDPAddr, name string) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		FileName: name,
		Client:   client,
		ctrl:     ctrl,
		control:  control,
		state:    StateCreated,
		rec: &models.TransferRecord{
			SessionID:  id,
			FileName:   name,
			ClientAddr: client.String(),
		},
		log: global.Logger.With().Str("session", id).Str("file", name).Str("client", client.String()).Logger(),
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Grant returns the grant sent to the client while the session is granting
// or serving, and nil otherwise.
func (s *Session) Grant() *network.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateGranting && s.state != StateServing {
		return nil
	}
	return s.grant
}

// Run drives the session until it closes. The data port and socket are
// released on every path out.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown(ctx)

	if err := s.ctrl.Transfers.Begin(ctx, s.rec); err != nil {
		s.log.Warn().Err(err).Msg("ledger begin failed")
	}

	size, err := s.ctrl.Storage.Size(ctx, s.FileName)
	if errors.Is(err, services.ErrFileNotFound) {
		s.setState(StateNotFound)
		s.rec.Status = models.StatusNotFound
		s.log.Info().Msg("requested file not found")
		s.replyControl(network.ReasonNotFound)
		return
	}
	if err != nil {
		s.fail(err)
		s.replyControl(network.ReasonUnavailable)
		return
	}
	s.size = size
	s.rec.FileSize = size

	conn, port, err := s.bind()
	if err != nil {
		s.rec.Status = models.StatusBusy
		s.rec.Error = err.Error()
		s.log.Error().Err(err).Msg("no data channel")
		s.replyControl(network.ReasonBusy)
		return
	}
	s.data, s.port = conn, port
	s.rec.DataPort = port

	grant := &network.Message{Kind: network.MsgGrant, FileName: s.FileName, Size: size, Port: port}
	s.mu.Lock()
	s.state, s.grant = StateGranting, grant
	s.mu.Unlock()
	if err := network.Reply(s.control, s.Client, grant); err != nil {
		s.fail(fmt.Errorf("send grant: %w", err))
		return
	}
	if err := s.ctrl.Transfers.Grant(ctx, s.rec); err != nil {
		s.log.Warn().Err(err).Msg("ledger grant failed")
	}
	s.log.Info().Int64("size", size).Int("port", port).Msg("download granted")

	s.setState(StateServing)
	s.serve(ctx)
}

// bind allocates a port and binds it, drawing a fresh port when the OS
// refuses one, up to BindAttempts times.
func (s *Session) bind() (*net.UDPConn, int, error) {
	attempts := s.ctrl.Opts.BindAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		port, err := s.ctrl.Ports.Allocate()
		if err != nil {
			return nil, 0, err
		}
		conn, err := network.ListenUDP(s.ctrl.Opts.Host, port)
		if err == nil {
			return conn, port, nil
		}
		s.ctrl.Ports.Release(port)
		lastErr = err
		s.log.Warn().Err(err).Int("port", port).Int("attempt", i+1).Msg("bind failed, drawing another port")
	}
	return nil, 0, fmt.Errorf("%w after %d attempts: %v", ErrBindFailed, attempts, lastErr)
}

func (s *Session) serve(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.data.SetReadDeadline(time.Now())
	})
	defer stop()

	idle := s.ctrl.Opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	idleDeadline := time.Now().Add(idle)
	buf := make([]byte, network.MaxDatagram)
	for {
		if err := s.data.SetReadDeadline(idleDeadline); err != nil {
			s.fail(err)
			return
		}
		if ctx.Err() != nil {
			s.rec.Status = models.StatusAbandoned
			s.rec.Error = "server shutting down"
			return
		}
		payload, from, err := network.ReadDatagram(s.data, buf)
		if err != nil {
			if ctx.Err() != nil {
				s.rec.Status = models.StatusAbandoned
				s.rec.Error = "server shutting down"
				return
			}
			if network.IsTimeout(err) {
				s.rec.Status = models.StatusAbandoned
				s.rec.Error = fmt.Sprintf("idle for %v", idle)
				s.log.Warn().Dur("idle", idle).Msg("client went quiet, closing session")
				return
			}
			s.fail(fmt.Errorf("read data socket: %w", err))
			return
		}
		if !network.SameAddr(from, s.Client) {
			s.log.Debug().Str("from", from.String()).Msg("ignoring datagram from foreign peer")
			continue
		}
		msg, err := network.Parse(payload)
		if err != nil || msg.FileName != s.FileName {
			s.log.Debug().Int("len", len(payload)).Msg("ignoring malformed request")
			continue
		}

		switch msg.Kind {
		case network.MsgGet:
			if msg.End >= s.size {
				s.log.Debug().Int64("start", msg.Start).Int64("end", msg.End).Msg("ignoring out of range request")
				continue
			}
			if msg.End-msg.Start+1 > network.MaxChunkPayload {
				s.log.Debug().Int64("start", msg.Start).Int64("end", msg.End).Msg("ignoring range too large for one datagram")
				continue
			}
			if err := s.sendChunk(ctx, msg.Start, msg.End); err != nil {
				s.fail(err)
				return
			}
			idleDeadline = time.Now().Add(idle)
		case network.MsgClose:
			ack := &network.Message{Kind: network.MsgCloseOK, FileName: s.FileName}
			if err := network.Reply(s.data, s.Client, ack); err != nil {
				s.log.Warn().Err(err).Msg("send close ack failed")
			}
			s.rec.Status = models.StatusClosed
			return
		default:
			s.log.Debug().Stringer("kind", msg.Kind).Msg("ignoring unexpected message")
		}
	}
}

func (s *Session) sendChunk(ctx context.Context, start, end int64) error {
	data, err := s.ctrl.Storage.ReadRange(ctx, s.FileName, start, end)
	if err != nil {
		return err
	}
	chunk := &network.Message{
		Kind:     network.MsgChunk,
		FileName: s.FileName,
		Start:    start,
		End:      end,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	if err := network.Reply(s.data, s.Client, chunk); err != nil {
		return fmt.Errorf("send chunk: %w", err)
	}
	s.rec.BytesSent += int64(len(data))
	s.rec.Chunks++
	return nil
}

func (s *Session) replyControl(reason string) {
	msg := &network.Message{Kind: network.MsgError, FileName: s.FileName, Reason: reason}
	if err := network.Reply(s.control, s.Client, msg); err != nil {
		s.log.Warn().Err(err).Msg("send error reply failed")
	}
}

func (s *Session) fail(err error) {
	s.rec.Status = models.StatusFailed
	s.rec.Error = err.Error()
	s.log.Error().Err(err).Msg("session failed")
}

func (s *Session) teardown(ctx context.Context) {
	if s.data != nil {
		_ = s.data.Close()
	}
	if s.port != 0 {
		s.ctrl.Ports.Release(s.port)
	}
	s.setState(StateClosed)
	if s.rec.Status == "" || s.rec.Status == models.StatusServing {
		s.rec.Status = models.StatusClosed
	}
	if err := s.ctrl.Transfers.Finish(ctx, s.rec); err != nil {
		s.log.Warn().Err(err).Msg("ledger finish failed")
	}
	s.log.Info().
		Str("status", s.rec.Status).
		Int64("bytes_sent", s.rec.BytesSent).
		Int("chunks", s.rec.Chunks).
		Msg("session closed")
}
