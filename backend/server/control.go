package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"udpfetch/backend/app/controllers"
	"udpfetch/backend/global"
	"udpfetch/network"
)

// ListenControl binds the well-known control port.
func ListenControl(host string, port int) (*net.UDPConn, error) {
	if port <= 0 {
		return nil, errors.New("invalid port")
	}
	conn, err := network.ListenUDP(host, port)
	if err != nil {
		return nil, fmt.Errorf("listen udp failed: %w", err)
	}
	return conn, nil
}

// ServeControl reads control datagrams until ctx is cancelled, then closes
// conn. Each DOWNLOAD request is handed to ctrl without waiting on it.
func ServeControl(ctx context.Context, conn *net.UDPConn, ctrl *controllers.ControlController) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	global.Logger.Info().Msgf("Control listener is listening on %s...", conn.LocalAddr())
	buf := make([]byte, network.MaxDatagram)
	for {
		payload, from, err := network.ReadDatagram(conn, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				global.Logger.Info().Msg("control listener stopped")
				return nil
			}
			global.Logger.Warn().Err(err).Msg("control read failed")
			continue
		}
		global.Logger.Debug().
			Str("from", from.String()).
			Int("payload_len", len(payload)).
			Msg("control datagram received")
		ctrl.HandleControl(ctx, conn, from, payload)
	}
}

// StartControlServer binds host:port and serves until ctx is cancelled.
func StartControlServer(ctx context.Context, host string, port int, ctrl *controllers.ControlController) error {
	conn, err := ListenControl(host, port)
	if err != nil {
		return err
	}
	return ServeControl(ctx, conn, ctrl)
}
