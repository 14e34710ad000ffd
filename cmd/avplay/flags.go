package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/avplay-go/avplay/internal/controller"
	"github.com/avplay-go/avplay/internal/mclock"
)

// cliConfig holds user-supplied flag values prior to translation into
// controller.Config, following alxayo-rtmp-go/cmd/rtmp-server/flags.go's
// parse-then-validate-then-translate shape.
type cliConfig struct {
	noVideo    bool
	noAudio    bool
	noSubtitle bool
	sync       string
	volume     int
	start      float64
	logLevel   string
	url        string
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("avplay", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.BoolVar(&cfg.noVideo, "no-video", false, "disable video decoding and presentation")
	fs.BoolVar(&cfg.noAudio, "no-audio", false, "disable audio decoding and presentation")
	fs.BoolVar(&cfg.noSubtitle, "no-subtitle", false, "disable subtitle decoding")
	fs.StringVar(&cfg.sync, "sync", "audio", "master clock: audio|video|ext")
	fs.IntVar(&cfg.volume, "volume", 100, "initial volume, 0-100")
	fs.Float64Var(&cfg.start, "start", 0, "start position in seconds")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one URL argument, got %d", fs.NArg())
	}
	cfg.url = fs.Arg(0)

	switch cfg.sync {
	case "audio", "video", "ext":
	default:
		return nil, fmt.Errorf("invalid -sync %q: must be audio, video, or ext", cfg.sync)
	}
	if cfg.volume < 0 || cfg.volume > 100 {
		return nil, fmt.Errorf("-volume must be between 0 and 100, got %d", cfg.volume)
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid -log-level %q", cfg.logLevel)
	}

	return cfg, nil
}

func (c *cliConfig) syncMode() mclock.SyncMode {
	switch c.sync {
	case "video":
		return mclock.VideoMaster
	case "ext":
		return mclock.ExternalClock
	default:
		return mclock.AudioMaster
	}
}

func (c *cliConfig) toControllerConfig() controller.Config {
	return controller.Config{
		URL:          c.url,
		NoVideo:      c.noVideo,
		NoAudio:      c.noAudio,
		NoSubtitle:   c.noSubtitle,
		Sync:         c.syncMode(),
		Volume:       c.volume,
		StartSeconds: c.start,
	}
}
