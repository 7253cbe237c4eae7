package network

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// MessageKind identifies one line of the text protocol.
type MessageKind uint8

const (
	MsgDownload MessageKind = iota + 1 // DOWNLOAD <name>
	MsgGrant                           // OK <name> SIZE <n> PORT <p>
	MsgError                           // ERR <name> <reason>
	MsgGet                             // FILE <name> GET <start> <end>
	MsgChunk                           // FILE <name> OK START <s> END <e> DATA <base64>
	MsgClose                           // FILE <name> CLOSE
	MsgCloseOK                         // FILE <name> CLOSE_OK
)

// Error reasons carried by ERR replies.
const (
	ReasonNotFound    = "NOT_FOUND"
	ReasonBusy        = "BUSY"
	ReasonUnavailable = "UNAVAILABLE"
)

var ErrMalformed = errors.New("malformed message")

func (k MessageKind) String() string {
	switch k {
	case MsgDownload:
		return "DOWNLOAD"
	case MsgGrant:
		return "GRANT"
	case MsgError:
		return "ERR"
	case MsgGet:
		return "GET"
	case MsgChunk:
		return "CHUNK"
	case MsgClose:
		return "CLOSE"
	case MsgCloseOK:
		return "CLOSE_OK"
	default:
		return "UNKNOWN"
	}
}

// Message is a decoded protocol datagram. Only the fields relevant to Kind are set.
type Message struct {
	Kind     MessageKind
	FileName string

	Size int64 // grant
	Port int   // grant

	Reason string // error

	Start int64  // get, chunk
	End   int64  // get, chunk
	Data  string // chunk, still base64
}

// ValidFileName reports whether name can travel inside the text grammar.
func ValidFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' || r == '\\' {
			return false
		}
	}
	return true
}

// Bytes renders m in its wire form.
func (m *Message) Bytes() []byte {
	var b strings.Builder
	switch m.Kind {
	case MsgDownload:
		b.WriteString("DOWNLOAD ")
		b.WriteString(m.FileName)
	case MsgGrant:
		b.WriteString("OK ")
		b.WriteString(m.FileName)
		b.WriteString(" SIZE ")
		b.WriteString(strconv.FormatInt(m.Size, 10))
		b.WriteString(" PORT ")
		b.WriteString(strconv.Itoa(m.Port))
	case MsgError:
		b.WriteString("ERR ")
		b.WriteString(m.FileName)
		b.WriteByte(' ')
		b.WriteString(m.Reason)
	case MsgGet:
		b.WriteString("FILE ")
		b.WriteString(m.FileName)
		b.WriteString(" GET ")
		b.WriteString(strconv.FormatInt(m.Start, 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(m.End, 10))
	case MsgChunk:
		b.WriteString("FILE ")
		b.WriteString(m.FileName)
		b.WriteString(" OK START ")
		b.WriteString(strconv.FormatInt(m.Start, 10))
		b.WriteString(" END ")
		b.WriteString(strconv.FormatInt(m.End, 10))
		b.WriteString(" DATA ")
		b.WriteString(m.Data)
	case MsgClose:
		b.WriteString("FILE ")
		b.WriteString(m.FileName)
		b.WriteString(" CLOSE")
	case MsgCloseOK:
		b.WriteString("FILE ")
		b.WriteString(m.FileName)
		b.WriteString(" CLOSE_OK")
	}
	return []byte(b.String())
}

func (m *Message) String() string { return string(m.Bytes()) }

// Parse decodes one datagram. Unknown or malformed input returns ErrMalformed.
func Parse(raw []byte) (*Message, error) {
	line := strings.TrimSpace(string(raw))
	if rest, ok := strings.CutPrefix(line, "DOWNLOAD "); ok {
		name := strings.TrimSpace(rest)
		if name == "" {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgDownload, FileName: name}, nil
	}

	f := strings.Fields(line)
	if len(f) < 2 {
		return nil, ErrMalformed
	}
	switch f[0] {
	case "OK":
		return parseGrant(f)
	case "ERR":
		if len(f) < 3 {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgError, FileName: f[1], Reason: strings.Join(f[2:], " ")}, nil
	case "FILE":
		return parseFile(f)
	}
	return nil, ErrMalformed
}

// parseGrant accepts SIZE and PORT in any order after the name.
func parseGrant(f []string) (*Message, error) {
	m := &Message{Kind: MsgGrant, FileName: f[1], Size: -1, Port: -1}
	for i := 2; i+1 < len(f); i++ {
		switch f[i] {
		case "SIZE":
			n, err := strconv.ParseInt(f[i+1], 10, 64)
			if err != nil || n < 0 {
				return nil, ErrMalformed
			}
			m.Size = n
			i++
		case "PORT":
			p, err := strconv.Atoi(f[i+1])
			if err != nil || p <= 0 || p > 65535 {
				return nil, ErrMalformed
			}
			m.Port = p
			i++
		}
	}
	if m.Size < 0 || m.Port < 0 {
		return nil, ErrMalformed
	}
	return m, nil
}

func parseFile(f []string) (*Message, error) {
	if len(f) < 3 {
		return nil, ErrMalformed
	}
	name := f[1]
	switch f[2] {
	case "GET":
		if len(f) != 5 {
			return nil, ErrMalformed
		}
		start, end, ok := parseRange(f[3], f[4])
		if !ok {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgGet, FileName: name, Start: start, End: end}, nil
	case "OK":
		if len(f) != 9 || f[3] != "START" || f[5] != "END" || f[7] != "DATA" {
			return nil, ErrMalformed
		}
		start, end, ok := parseRange(f[4], f[6])
		if !ok {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgChunk, FileName: name, Start: start, End: end, Data: f[8]}, nil
	case "CLOSE":
		if len(f) != 3 {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgClose, FileName: name}, nil
	case "CLOSE_OK":
		if len(f) != 3 {
			return nil, ErrMalformed
		}
		return &Message{Kind: MsgCloseOK, FileName: name}, nil
	}
	return nil, ErrMalformed
}

func parseRange(a, b string) (int64, int64, bool) {
	start, err := strconv.ParseInt(a, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	end, err := strconv.ParseInt(b, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end, true
}
