// pulsemon connects to the emulated sound server, mirrors its state to the
// log, and keeps a playback stream fed with a test tone. It exercises the
// whole client surface: connection handshake, subscriptions, introspection
// and the stream write protocol, all driven by the threaded mainloop.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lisuiheng/pulse-go/core"
	"github.com/lisuiheng/pulse-go/emul"
	"github.com/lisuiheng/pulse-go/logger"
	"github.com/lisuiheng/pulse-go/mainloop"
	"github.com/lisuiheng/pulse-go/proto"
)

const toneHz = 440.0

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, /etc/pulse-go/config.yaml, etc.)")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Logging.Level,
		Outputs: cfg.Logging.Outputs,
	}); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logger.Info("Shutting down pulsemon")

	if err := run(cfg); err != nil {
		logger.Error("pulsemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg core.Config) error {
	tm, err := mainloop.NewThreaded()
	if err != nil {
		return err
	}
	defer tm.Close()

	srv := emul.New(tm.API(), logger.Logger())
	if err := tm.Start(); err != nil {
		return err
	}
	defer tm.Stop()

	tm.Lock()
	ctx, err := core.NewContext(tm.API(), srv, cfg.Server.AppName, core.WithLogger(logger.Logger()))
	if err != nil {
		tm.Unlock()
		return err
	}

	ready := make(chan struct{})
	failed := make(chan error, 1)
	ctx.SetStateHandler(func(st proto.ContextState) {
		logger.Info("Context state", "state", st)
		switch st {
		case proto.ContextReady:
			close(ready)
		case proto.ContextFailed:
			failed <- ctx.Err()
		}
	})
	err = ctx.Connect(cfg.Server.Address, cfg.ContextFlags())
	tm.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ready:
	case err := <-failed:
		return err
	case <-time.After(5 * time.Second):
		return errors.New("timed out waiting for the server handshake")
	}

	if err := watchServer(tm, ctx); err != nil {
		return err
	}
	stream, err := playTone(tm, ctx, cfg)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig)
	case err := <-failed:
		return err
	}

	tm.Lock()
	stream.Disconnect()
	ctx.Disconnect()
	tm.Unlock()
	return nil
}

// watchServer subscribes to every facility and dumps the current sink list.
func watchServer(tm *mainloop.ThreadedMainloop, ctx *core.Context) error {
	tm.Lock()
	defer tm.Unlock()

	_, err := ctx.Subscribe(proto.SubscriptionMaskAll, func(ev proto.SubscriptionEvent) {
		logger.Info("Server event", "facility", ev.Facility, "kind", ev.Kind, "index", ev.Index)
	}, func(err error) {
		if err != nil {
			logger.Warn("Subscribe failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = ctx.GetServerInfo(func(info *proto.ServerInfo) {
		logger.Info("Server", "package", info.PackageName, "version", info.PackageVersion,
			"default_sink", info.DefaultSinkName, "default_source", info.DefaultSourceName)
	})
	if err != nil {
		return err
	}

	_, err = ctx.GetSinkInfoList(func(sinks []*proto.SinkInfo) {
		for _, si := range sinks {
			logger.Info("Sink", "index", si.Index, "name", si.Name,
				"volume", si.Volume.Avg(), "muted", si.Muted)
		}
	})
	return err
}

// playTone opens a playback stream and keeps it fed from the write handler.
func playTone(tm *mainloop.ThreadedMainloop, ctx *core.Context, cfg core.Config) (*core.Stream, error) {
	spec, err := cfg.SampleSpec()
	if err != nil {
		return nil, err
	}
	// The generator emits s16le regardless of the configured format.
	spec.Format = proto.SampleS16LE

	tm.Lock()
	defer tm.Unlock()

	s, err := core.NewStream(ctx, "test tone", spec)
	if err != nil {
		return nil, err
	}

	gen := &toneGenerator{spec: spec}
	s.SetWriteHandler(func(uint32) {
		// Runs on the loop thread; write everything currently accepted.
		n := s.WritableSize()
		if n == 0 {
			return
		}
		if _, err := s.Write(gen.next(int(n)), proto.SeekRelative); err != nil {
			logger.Warn("Tone write failed", "error", err)
		}
	})
	s.SetStateHandler(func(st proto.StreamState) {
		logger.Info("Stream state", "stream", s.Name(), "state", st)
	})
	s.SetUnderflowHandler(func() {
		logger.Warn("Stream underflow", "stream", s.Name())
	})

	attr := cfg.BufferAttr()
	if err := s.ConnectPlayback("", &attr, proto.StreamNoFlags); err != nil {
		return nil, err
	}
	return s, nil
}

// toneGenerator produces a continuous sine at toneHz, s16le interleaved.
type toneGenerator struct {
	spec  proto.SampleSpec
	phase float64
}

func (g *toneGenerator) next(nbytes int) []byte {
	frame := g.spec.FrameSize()
	if frame == 0 {
		return nil
	}
	nbytes -= nbytes % frame
	buf := make([]byte, nbytes)
	step := 2 * math.Pi * toneHz / float64(g.spec.Rate)
	for off := 0; off < nbytes; off += frame {
		sample := int16(math.Sin(g.phase) * 0.3 * math.MaxInt16)
		g.phase += step
		for ch := 0; ch < int(g.spec.Channels); ch++ {
			binary.LittleEndian.PutUint16(buf[off+2*ch:], uint16(sample))
		}
	}
	return buf
}
