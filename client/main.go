package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"udpfetch/client/internal/config"
	"udpfetch/client/internal/download"
	"udpfetch/client/internal/logger"
	"udpfetch/client/internal/progress"
	"udpfetch/network"

	"github.com/spf13/afero"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath = flag.String("config", "config/client.yaml", "Path to configuration file")
		outDir  = flag.String("out", "", "Directory to write downloads to (overrides config)")
		quiet   = flag.Bool("quiet", false, "Disable the progress display")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <host> <port> <file-list>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		return 2
	}
	host, portArg, listPath := flag.Arg(0), flag.Arg(1), flag.Arg(2)
	port, err := strconv.Atoi(portArg)
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", portArg)
		return 2
	}

	cfg := config.Init(*cfgPath)
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "Cannot open log file:", err)
		return 1
	}

	fs := afero.NewOsFs()
	names, err := download.ReadList(fs, listPath)
	if err != nil {
		logger.Error("Cannot read file list:", err)
		return 1
	}
	if len(names) == 0 {
		logger.Warn("File list is empty, nothing to download")
		return 0
	}

	server, err := network.ResolveUDP(host, port)
	if err != nil {
		logger.Error("Cannot resolve server:", err)
		return 1
	}
	conn, err := network.ListenUDP("", 0)
	if err != nil {
		logger.Error("Cannot open UDP socket:", err)
		return 1
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tracker download.Tracker
	if cfg.Progress && !*quiet {
		tracker = progress.NewReporter(progress.Options{Output: os.Stdout})
	}
	req := network.NewRequester(conn, cfg.Retry, logger.L)
	d := download.New(req, server, download.NewSink(fs, cfg.OutputDir), download.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkRetries: cfg.ChunkRetries,
	}, tracker, logger.L)

	logger.Infof("Downloading %d file(s) from %s", len(names), server)
	began := time.Now()
	results := d.FetchAll(ctx, names)

	var ok, failed int
	var total int64
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			logger.Errorf("%-24s FAILED  %v", r.Name, r.Err)
		case r.Warning != nil:
			ok++
			total += r.Bytes
			logger.Warnf("%-24s OK      %s (%v)", r.Name, progress.FormatBytes(r.Bytes), r.Warning)
		default:
			ok++
			total += r.Bytes
			logger.Infof("%-24s OK      %s in %v", r.Name, progress.FormatBytes(r.Bytes), r.Duration.Round(time.Millisecond))
		}
	}
	skipped := len(names) - len(results)
	logger.Infof("Done: %d ok, %d failed, %d skipped, %s in %v",
		ok, failed, skipped, progress.FormatBytes(total), time.Since(began).Round(time.Millisecond))

	// per-file failures are reported above and do not change the exit status
	if errors.Is(ctx.Err(), context.Canceled) {
		return 130
	}
	return 0
}
