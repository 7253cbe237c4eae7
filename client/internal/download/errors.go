package download

import (
	"errors"
	"fmt"

	"udpfetch/network"
)

var (
	ErrInvalidName         = errors.New("file name cannot be sent")
	ErrNotFound            = errors.New("file not found on server")
	ErrGrantMalformed      = errors.New("malformed download grant")
	ErrUnknownResponse     = errors.New("unknown response format")
	ErrNoResponse          = network.ErrNoResponse
	ErrInvalidChunk        = errors.New("no valid chunk after retries")
	ErrDecode              = errors.New("chunk payload is not valid base64")
	ErrCloseUnacknowledged = errors.New("close not acknowledged")
	ErrListMissing         = errors.New("file list not found")
)

// ServerError is an ERR reply from the control channel.
type ServerError struct {
	FileName string
	Reason   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server refused %s: %s", e.FileName, e.Reason)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrNotFound && e.Reason == network.ReasonNotFound
}
