// Command maudioctl is a small CLI front end for the engine: list the
// playback/capture devices a backend can see, or play a test tone through
// one. It replaces the teacher's cmd/assistant (a voice-assistant pipeline
// built on STT/TTS/LLM components entirely outside this engine's scope) with
// a CLI that actually exercises device/backend/graph, using
// github.com/spf13/pflag for flag parsing the way the wider example corpus
// does rather than stdlib flag.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/agalue/maudio/backend"
	"github.com/agalue/maudio/backend/malgo"
	"github.com/agalue/maudio/device"
	"github.com/agalue/maudio/graph"
	"github.com/agalue/maudio/malog"
	"github.com/agalue/maudio/pcm"
	"github.com/agalue/maudio/source"
)

func main() {
	var (
		list       = pflag.Bool("list", false, "enumerate playback and capture devices, then exit")
		play       = pflag.Bool("play", false, "play a test tone through the default playback device")
		freq       = pflag.Float64("freq", 440, "test tone frequency in Hz")
		amplitude  = pflag.Float64("amplitude", 0.2, "test tone amplitude, 0..1")
		sampleRate = pflag.Int("rate", 48000, "requested sample rate")
		channels   = pflag.Int("channels", 2, "requested channel count")
		verbose    = pflag.Bool("verbose", false, "log at debug level")
	)
	pflag.Parse()

	logLevel := malog.LevelInfo
	if *verbose {
		logLevel = malog.LevelDebug
	}
	log := malog.NewBus()
	log.AddSink(malog.NewCharmSink(logLevel))

	ctx, err := device.NewContext(device.ContextConfig{
		Backends: []backend.VTable{malgo.New()},
		Log:      log,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "maudioctl:", err)
		os.Exit(1)
	}
	defer ctx.Uninit()

	switch {
	case *list:
		if err := listDevices(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "maudioctl:", err)
			os.Exit(1)
		}
	case *play:
		if err := playTone(ctx, log, *freq, float32(*amplitude), *sampleRate, *channels); err != nil {
			fmt.Fprintln(os.Stderr, "maudioctl:", err)
			os.Exit(1)
		}
	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func listDevices(ctx *device.Context) error {
	fmt.Printf("backend: %s\n", ctx.BackendName())
	for _, role := range []backend.Role{backend.RolePlayback, backend.RoleCapture} {
		fmt.Printf("%s devices:\n", role)
		err := ctx.EnumerateDevices(role, func(info backend.DeviceInfo) error {
			fmt.Printf("  %s\n", info.Name)
			for _, f := range info.Formats {
				fmt.Printf("    %s, %d ch, %d-%d Hz%s\n", f.Format, f.Channels, f.MinRate, f.MaxRate, defaultSuffix(f.IsDefault))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func defaultSuffix(isDefault bool) string {
	if isDefault {
		return " (default)"
	}
	return ""
}

// playTone builds a two-node graph (a sine source node feeding a
// passthrough endpoint) and pulls it from a playback device's data
// callback, driven by CLI flags.
func playTone(ctx *device.Context, log *malog.Bus, freq float64, amplitude float32, sampleRate, channels int) error {
	layout, err := pcm.NewLayout(channels, nil)
	if err != nil {
		return err
	}

	g := graph.New(graph.GraphConfig{MaxSimultaneousBuses: 4, MaxFramesPerPull: 4096, MaxChannels: channels})

	tone, err := source.NewSine(source.Format{SampleFormat: pcm.FormatF32, Layout: layout, SampleRate: sampleRate}, source.WaveformSine, freq, amplitude)
	if err != nil {
		return err
	}
	toneCfg, err := graph.NewSourceNode(tone, graph.SourceNodeConfig{OutLayout: layout, OutRate: sampleRate})
	if err != nil {
		return err
	}
	toneID, err := g.AddNode(toneCfg)
	if err != nil {
		return err
	}

	endpointCfg := graph.Config{
		InputBuses:  []graph.BusSpec{{Channels: channels}},
		OutputBuses: []graph.BusSpec{{Channels: channels}},
		Flags:       graph.Flags{Passthrough: true},
	}
	endpointID, err := g.AddNode(endpointCfg)
	if err != nil {
		return err
	}
	if err := g.AttachOutputBus(toneID, 0, endpointID, 0, 1); err != nil {
		return err
	}
	if err := g.SetEndpoint(endpointID); err != nil {
		return err
	}

	bpf, err := pcm.BytesPerFrame(pcm.FormatF32, channels)
	if err != nil {
		return err
	}
	scratch := make([]float32, 0, 4096*channels)

	// The data callback logs into a RingSink-only bus; the ring is drained
	// into log on this goroutine once playback ends.
	rtLog := malog.NewBus()
	rtRing := malog.NewRingSink(64)
	rtLog.AddSink(rtRing)
	defer rtRing.Drain(malog.SinkFunc(func(level malog.Level, message string, kv ...any) {
		log.Emit(level, message, kv...)
	}))

	dataCallback := func(d *device.Device, out, in []byte, frameCount int) {
		if cap(scratch) < frameCount*channels {
			scratch = make([]float32, frameCount*channels)
		}
		produced, err := g.ReadPCMFrames(scratch[:frameCount*channels], frameCount)
		if err != nil {
			rtLog.EmitRealtime(malog.LevelError, "graph read failed", "err", err)
			return
		}
		if err := pcm.EncodeF32(pcm.FormatF32, channels, scratch, out, produced); err != nil {
			rtLog.EmitRealtime(malog.LevelError, "encode failed", "err", err)
		}
		for i := produced * bpf; i < len(out); i++ {
			out[i] = 0
		}
	}

	dev, err := device.Init(device.Config{
		Context: ctx,
		Playback: &device.Descriptor{
			Format:           pcm.FormatF32,
			Channels:         channels,
			SampleRate:       sampleRate,
			UseDefaultDevice: true,
		},
		Threading: device.MultiThreaded,
		OnData:    dataCallback,
		OnNotify: func(kind backend.NotificationKind, err error) {
			log.Emit(malog.LevelWarn, "device notification", "kind", kind, "err", err)
		},
	})
	if err != nil {
		return err
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return err
	}
	defer dev.Stop()

	name, _ := dev.GetName(backend.RolePlayback)
	fmt.Printf("playing %.1f Hz tone on %q, press Ctrl+C or Enter to stop\n", freq, name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	enterCh := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(enterCh)
	}()

	select {
	case <-sigCh:
	case <-enterCh:
	}
	return nil
}
