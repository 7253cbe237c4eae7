package network

import (
	"errors"
	"net"
)

// Reply writes msg to addr as a single datagram.
func Reply(conn *net.UDPConn, addr *net.UDPAddr, msg *Message) error {
	if conn == nil {
		return errors.New("socket not open")
	}
	if addr == nil {
		return errors.New("missing peer address")
	}
	_, err := conn.WriteToUDP(msg.Bytes(), addr)
	return err
}

// ReadDatagram reads one datagram into buf and returns a private copy of it.
func ReadDatagram(conn *net.UDPConn, buf []byte) ([]byte, *net.UDPAddr, error) {
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	data := make([]byte, n)
	copy(data, buf[:n])
	return data, addr, nil
}

// IsTimeout reports whether err is a read/write deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
