package network

import (
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestMessageBytes(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Message{Kind: MsgDownload, FileName: "a.txt"}, "DOWNLOAD a.txt"},
		{Message{Kind: MsgGrant, FileName: "a.txt", Size: 2500, Port: 50123}, "OK a.txt SIZE 2500 PORT 50123"},
		{Message{Kind: MsgError, FileName: "a.txt", Reason: ReasonNotFound}, "ERR a.txt NOT_FOUND"},
		{Message{Kind: MsgGet, FileName: "a.txt", Start: 1000, End: 1999}, "FILE a.txt GET 1000 1999"},
		{Message{Kind: MsgChunk, FileName: "a.txt", Start: 0, End: 2, Data: "YWJj"}, "FILE a.txt OK START 0 END 2 DATA YWJj"},
		{Message{Kind: MsgClose, FileName: "a.txt"}, "FILE a.txt CLOSE"},
		{Message{Kind: MsgCloseOK, FileName: "a.txt"}, "FILE a.txt CLOSE_OK"},
	}
	for _, tt := range tests {
		if got := string(tt.msg.Bytes()); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.msg.Kind, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Message
	}{
		{"DOWNLOAD   report.pdf  ", Message{Kind: MsgDownload, FileName: "report.pdf"}},
		{"OK a.txt SIZE 2500 PORT 50001", Message{Kind: MsgGrant, FileName: "a.txt", Size: 2500, Port: 50001}},
		{"OK a.txt PORT 50001 SIZE 0", Message{Kind: MsgGrant, FileName: "a.txt", Size: 0, Port: 50001}},
		{"ERR a.txt NOT_FOUND", Message{Kind: MsgError, FileName: "a.txt", Reason: "NOT_FOUND"}},
		{"FILE a.txt GET 0 999", Message{Kind: MsgGet, FileName: "a.txt", Start: 0, End: 999}},
		{"FILE a.txt OK START 5 END 7 DATA YWJj", Message{Kind: MsgChunk, FileName: "a.txt", Start: 5, End: 7, Data: "YWJj"}},
		{"FILE a.txt CLOSE\n", Message{Kind: MsgClose, FileName: "a.txt"}},
		{"FILE a.txt CLOSE_OK", Message{Kind: MsgCloseOK, FileName: "a.txt"}},
	}
	for _, tt := range tests {
		got, err := Parse([]byte(tt.in))
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if *got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, *got, tt.want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		"",
		"DOWNLOAD ",
		"HELLO world",
		"OK a.txt SIZE 10",
		"OK a.txt SIZE x PORT 1",
		"OK a.txt SIZE 10 PORT 70000",
		"ERR a.txt",
		"FILE a.txt GET 10",
		"FILE a.txt GET 10 5",
		"FILE a.txt GET -1 5",
		"FILE a.txt OK START 0 END 1",
		"FILE a.txt OK BEGIN 0 END 1 DATA AA==",
		"FILE a.txt CLOSE now",
		"FILE a.txt DELETE",
	}
	for _, in := range inputs {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestValidFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.txt", true},
		{"archive-2024_v2.tar.gz", true},
		{"", false},
		{"..", false},
		{"two words", false},
		{"tab\tname", false},
		{"dir/file", false},
		{`dir\file`, false},
	}
	for _, tt := range tests {
		if got := ValidFileName(tt.name); got != tt.want {
			t.Errorf("ValidFileName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMaxChunkFitsDatagram(t *testing.T) {
	chunk := Message{
		Kind:     MsgChunk,
		FileName: strings.Repeat("n", 255),
		Start:    math.MaxInt64 - MaxChunkPayload,
		End:      math.MaxInt64 - 1,
		Data:     base64.StdEncoding.EncodeToString(make([]byte, MaxChunkPayload)),
	}
	if n := len(chunk.Bytes()); n > MaxDatagram {
		t.Fatalf("largest chunk reply is %d bytes, limit %d", n, MaxDatagram)
	}
}
