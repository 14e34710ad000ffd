// Command avplay is a minimal media player core's CLI front end: it
// opens a URL, negotiates an audio device, and drives an ebiten window
// presenting the decoded video while the controller's background
// pipeline demuxes, decodes, and paces playback against the master
// clock.
package main

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/avplay-go/avplay/internal/controller"
	"github.com/avplay-go/avplay/internal/playctl"
	presvideo "github.com/avplay-go/avplay/internal/present/video"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run follows spec §6's exit code contract: 0 on clean exit, 1 on flag
// errors, 2 on open failures, 3 on runtime pipeline errors, >3 reserved.
func run(args []string) int {
	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level := parseLogLevel(cfg.logLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if !cfg.noAudio {
		if err := ensureAudioContext(cfg.url); err != nil {
			slog.Warn("audio context unavailable, continuing muted", "error", err)
			cfg.noAudio = true
		}
	}

	ctrl, err := controller.Open(cfg.toControllerConfig(), slog.Default())
	if err != nil {
		slog.Error("open failed", "error", err)
		return 2
	}

	if err := ctrl.Start(ctx); err != nil {
		slog.Error("start failed", "error", err)
		ctrl.Close()
		return 2
	}

	ebiten.SetWindowTitle("avplay")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(1280, 720)

	game := newGame(ctrl)
	runErr := ebiten.RunGame(game)

	ctrl.Close()
	if runErr != nil && runErr != errQuit {
		slog.Error("pipeline error", "error", runErr)
		return 3
	}
	return 0
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAudioContext negotiates the ebiten audio device's sample rate
// against the URL's first audio stream, mirroring
// avebi.CreateAudioContextForMedia.
func ensureAudioContext(url string) error {
	if audio.CurrentContext() != nil {
		return nil
	}
	m, err := reisen.NewMedia(url)
	if err != nil {
		return err
	}
	defer m.Close()

	streams := m.AudioStreams()
	if len(streams) == 0 {
		return fmt.Errorf("no audio streams in %q", url)
	}
	audio.NewContext(streams[0].SampleRate())
	return nil
}

var errQuit = fmt.Errorf("avplay: quit requested")

// game adapts the controller to ebiten's Game interface, translating
// input events into playctl.ControlMsg values and driving the video
// refresher once per Update tick.
type game struct {
	ctrl     *controller.Controller
	events   *presvideo.EventLoop
	frameImg *ebiten.Image
}

func newGame(ctrl *controller.Controller) *game {
	g := &game{ctrl: ctrl, events: presvideo.NewEventLoop(time.Now)}
	w, h := ctrl.VideoSize()
	if w <= 0 || h <= 0 {
		w, h = 16, 16
	}
	g.frameImg = ebiten.NewImage(w, h)
	g.frameImg.Fill(color.Black)
	return g
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func (g *game) Update() error {
	msgs, _ := g.events.Poll()
	for _, m := range msgs {
		if m.Kind == playctl.ControlQuit {
			return errQuit
		}
		g.ctrl.Dispatch(m)
	}

	ebiten.SetFullscreen(g.ctrl.FullScreen())

	refresher := g.ctrl.VideoRefresher()
	if refresher == nil {
		return nil
	}

	res := refresher.Refresh(nowSeconds())
	if res.Frame != nil && res.Frame.VideoFrame != nil {
		g.frameImg.WritePixels(res.Frame.VideoFrame.Data())
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	presvideo.Draw(screen, g.frameImg)
}

// nowSeconds adapts mclock.Now for the video refresher's tick clock.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
