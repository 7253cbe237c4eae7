package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"udpfetch/network"

	"github.com/rs/zerolog"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkRetries = 10
)

// Tracker follows a single file through the transfer.
type Tracker interface {
	Begin(name string, total int64)
	Add(n int64)
	End(err error)
}

type nopTracker struct{}

func (nopTracker) Begin(string, int64) {}
func (nopTracker) Add(int64)           {}
func (nopTracker) End(error)           {}

type Options struct {
	ChunkSize    int64
	ChunkRetries int
}

// Result describes one finished download attempt.
type Result struct {
	Name     string
	Path     string
	Size     int64
	Bytes    int64
	Chunks   int
	Port     int
	Duration time.Duration

	CloseAcknowledged bool
	// Warning is set when the data arrived but the session close was not acknowledged.
	Warning error
	Err     error
}

// Downloader fetches files from one server, one at a time.
type Downloader struct {
	req     *network.Requester
	server  *net.UDPAddr
	sink    *Sink
	opts    Options
	tracker Tracker
	log     zerolog.Logger
}

func New(req *network.Requester, server *net.UDPAddr, sink *Sink, opts Options, tracker Tracker, log zerolog.Logger) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	// a larger range cannot come back in one datagram
	opts.ChunkSize = min(opts.ChunkSize, network.MaxChunkPayload)
	if opts.ChunkRetries <= 0 {
		opts.ChunkRetries = DefaultChunkRetries
	}
	if tracker == nil {
		tracker = nopTracker{}
	}
	return &Downloader{req: req, server: server, sink: sink, opts: opts, tracker: tracker, log: log}
}

// FetchAll downloads names in order. A failed file does not stop the batch;
// only ctx cancellation does.
func (d *Downloader) FetchAll(ctx context.Context, names []string) []*Result {
	results := make([]*Result, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		res, err := d.Fetch(ctx, name)
		res.Err = err
		results = append(results, res)
	}
	return results
}

// Fetch downloads name into the sink. The local file is created only after
// the server grants the download and is removed again if the transfer fails.
func (d *Downloader) Fetch(ctx context.Context, name string) (res *Result, err error) {
	began := time.Now()
	res = &Result{Name: name}
	log := d.log.With().Str("file", name).Logger()
	defer func() {
		res.Duration = time.Since(began)
		if err != nil {
			log.Error().Err(err).Msg("download failed")
		}
	}()

	if !network.ValidFileName(name) {
		return res, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	grant, err := d.requestGrant(ctx, name)
	if err != nil {
		return res, err
	}
	res.Size, res.Port = grant.Size, grant.Port
	data := &net.UDPAddr{IP: d.server.IP, Port: grant.Port, Zone: d.server.Zone}
	log.Info().Int64("size", grant.Size).Int("port", grant.Port).Msg("download granted")

	out, err := d.sink.Create(name)
	if err != nil {
		d.abort(name, data)
		return res, err
	}
	res.Path = out.Path

	d.tracker.Begin(name, grant.Size)
	err = d.transfer(ctx, name, data, grant.Size, out, res)
	if err == nil {
		err = out.Commit()
	} else {
		out.Discard()
		if !errors.Is(err, ErrNoResponse) && ctx.Err() == nil {
			d.abort(name, data)
		}
	}
	d.tracker.End(err)
	if err != nil {
		return res, err
	}

	if err := d.close(ctx, name, data); err == nil {
		res.CloseAcknowledged = true
	} else {
		res.Warning = err
		log.Warn().Err(err).Msg("session close not acknowledged, keeping file")
	}
	log.Info().Int64("bytes", res.Bytes).Int("chunks", res.Chunks).Dur("took", time.Since(began)).Msg("download complete")
	return res, nil
}

func (d *Downloader) requestGrant(ctx context.Context, name string) (*network.Message, error) {
	req := &network.Message{Kind: network.MsgDownload, FileName: name}
	reply, err := d.req.Request(ctx, req.Bytes(), d.server, func(b []byte) bool {
		m, err := network.Parse(b)
		if err != nil {
			return true
		}
		switch m.Kind {
		case network.MsgGrant, network.MsgError:
			// a late reply for an earlier file
			return m.FileName == name
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(string(reply))
	msg, perr := network.Parse(reply)
	switch {
	case strings.HasPrefix(text, "ERR"):
		reason := strings.TrimSpace(strings.TrimPrefix(text, "ERR"))
		if perr == nil {
			reason = msg.Reason
		}
		return nil, &ServerError{FileName: name, Reason: reason}
	case !strings.HasPrefix(text, "OK"):
		return nil, fmt.Errorf("%w: %q", ErrUnknownResponse, text)
	case perr != nil || msg.Kind != network.MsgGrant:
		return nil, fmt.Errorf("%w: %q", ErrGrantMalformed, text)
	}
	return msg, nil
}

func (d *Downloader) transfer(ctx context.Context, name string, data *net.UDPAddr, size int64, out *LocalFile, res *Result) error {
	for start := int64(0); start < size; {
		end := min(start+d.opts.ChunkSize-1, size-1)
		chunk, err := d.fetchChunk(ctx, name, data, start, end)
		if err != nil {
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("write %s: %w", out.Path, err)
		}
		res.Bytes += int64(len(chunk))
		res.Chunks++
		d.tracker.Add(int64(len(chunk)))
		start = end + 1
	}
	return nil
}

// fetchChunk requests bytes [start, end]. Replies that are readable but wrong
// are retried up to ChunkRetries times; undecodable payloads end the transfer.
func (d *Downloader) fetchChunk(ctx context.Context, name string, data *net.UDPAddr, start, end int64) ([]byte, error) {
	get := (&network.Message{Kind: network.MsgGet, FileName: name, Start: start, End: end}).Bytes()
	match := func(b []byte) bool {
		m, err := network.Parse(b)
		if err != nil {
			return true
		}
		switch m.Kind {
		case network.MsgChunk:
			// answers to an earlier GET that was retransmitted
			return m.FileName != name || (m.Start == start && m.End == end)
		case network.MsgCloseOK:
			return false
		}
		return true
	}

	for attempt := 0; attempt <= d.opts.ChunkRetries; attempt++ {
		reply, err := d.req.Request(ctx, get, data, match)
		if err != nil {
			return nil, err
		}
		msg, err := network.Parse(reply)
		if err != nil || msg.Kind != network.MsgChunk || msg.FileName != name || msg.Start != start || msg.End != end {
			d.log.Warn().Str("file", name).Int64("start", start).Int("attempt", attempt+1).Msg("invalid chunk reply, requesting again")
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: bytes %d-%d: %v", ErrDecode, start, end, err)
		}
		if int64(len(payload)) != end-start+1 {
			d.log.Warn().Str("file", name).Int64("start", start).Int("got", len(payload)).Msg("chunk length mismatch, requesting again")
			continue
		}
		return payload, nil
	}
	return nil, fmt.Errorf("%w: bytes %d-%d after %d attempts", ErrInvalidChunk, start, end, d.opts.ChunkRetries+1)
}

func (d *Downloader) close(ctx context.Context, name string, data *net.UDPAddr) error {
	req := &network.Message{Kind: network.MsgClose, FileName: name}
	reply, err := d.req.Request(ctx, req.Bytes(), data, func(b []byte) bool {
		m, err := network.Parse(b)
		return err != nil || m.Kind != network.MsgChunk
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCloseUnacknowledged, err)
	}
	msg, err := network.Parse(reply)
	if err != nil || msg.Kind != network.MsgCloseOK || msg.FileName != name {
		return fmt.Errorf("%w: unexpected reply %q", ErrCloseUnacknowledged, strings.TrimSpace(string(reply)))
	}
	return nil
}

// abort tells the server to release the session without waiting for the ack.
func (d *Downloader) abort(name string, data *net.UDPAddr) {
	msg := &network.Message{Kind: network.MsgClose, FileName: name}
	if err := d.req.Notify(msg.Bytes(), data); err != nil {
		d.log.Debug().Err(err).Str("file", name).Msg("abort notice not sent")
	}
}
