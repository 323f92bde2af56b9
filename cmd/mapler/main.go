package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riverbell/mapler/cmd/mapler/log"
	"github.com/riverbell/mapler/internal/bot"
	"github.com/riverbell/mapler/internal/config"
	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/rng"
)

const gameWindowClass = "MapleStoryClass"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	configDir := flag.String("config-dir", "config", "directory holding settings and seeds")
	flag.Parse()

	logger, err := log.NewLogger(*logLevel, "logs")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	slog.SetDefault(logger)
	defer log.FlushAndClose()

	settings, err := config.LoadSettings(filepath.Join(*configDir, "settings.yaml"))
	if err != nil {
		return err
	}
	seeds, err := config.LoadSeeds(filepath.Join(*configDir, "seeds.yaml"), uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	rand := rng.New(seeds.Seed)

	handle := game.NewHandle(gameWindowClass)
	inputKind := game.KeyInputFixed
	if settings.CaptureMode == config.CaptureWindowsGraphicsCapture {
		inputKind = game.KeyInputForeground
	}
	method := game.KeySenderMethod{Handle: handle, Kind: inputKind}
	if settings.InputMethod == config.InputRpc {
		token, err := config.UnsealRpcToken(settings.InputMethodRpcToken)
		if err != nil {
			return fmt.Errorf("unsealing input RPC token: %w", err)
		}
		method.RpcURL = settings.InputMethodRpcServerURL
		method.RpcToken = token
	}
	keys := game.NewDefaultKeySender(method, rand)
	defer keys.Close()

	scheduler := notify.NewScheduler()
	driver := bot.NewDriver(bot.DriverOptions{
		Settings: settings,
		Handle:   handle,
		Keys:     keys,
		Capture:  game.NewBitBltCapture(handle),
		Detector: func(frame *game.Frame) detect.Detector {
			return detect.NewPixel(frame)
		},
		Notify:    scheduler,
		RNG:       rand,
		Receiver:  game.NewKeyReceiver(handle, inputKind),
		Navigator: bot.NewPlatformNavigator(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Run(ctx)
	})
	g.Go(func() error {
		return drainNotifications(ctx, scheduler)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// drainNotifications logs finished notifications. A deployment wanting
// Discord or similar replaces this loop with its delivery client.
func drainNotifications(ctx context.Context, scheduler *notify.Scheduler) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, n := range scheduler.Drain() {
				slog.Info("notification",
					"kind", n.Kind.String(), "at", n.At, "frame_bytes", len(n.Frame))
			}
		}
	}
}
