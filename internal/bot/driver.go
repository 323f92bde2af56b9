package bot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/riverbell/mapler/internal/config"
	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/game"
	"github.com/riverbell/mapler/internal/notify"
	"github.com/riverbell/mapler/internal/pathing"
	"github.com/riverbell/mapler/internal/rng"
)

// ErrAlreadyRunning is returned by Run when a tick loop is already active.
var ErrAlreadyRunning = errors.New("bot: tick loop already running")

// A minimap change arms a pending halt instead of halting outright; the
// navigator can legitimately walk the player off-map, so the halt fires only
// when the change persists this long.
const pendingHaltAfter = 12 * time.Second

// DetectorFactory builds the detector for one captured frame. The host
// supplies the vision backend.
type DetectorFactory func(frame *game.Frame) detect.Detector

// Driver owns the tick loop and all contextual state folded through it. One
// Driver corresponds to one game window.
type Driver struct {
	settings config.Settings

	capture  game.Capture
	detector DetectorFactory
	receiver *game.KeyReceiver

	ctx          Context
	playerState  *PlayerState
	minimapState MinimapState
	skillStates  [detect.SkillKindCount]SkillState
	buffStates   [detect.BuffKindCount]BuffState
	rotator      *Rotator

	// mapAttached gates fail-or-map-change handling until the host has
	// attached a map through AttachMap.
	mapAttached bool
	pendingHalt *time.Time

	requests chan func(*Driver)
	looping  atomic.Bool

	overrunLog *rateLimitedLog
}

// DriverOptions wires the host collaborators into a Driver.
type DriverOptions struct {
	Settings config.Settings
	Handle   game.Handle
	Keys     game.KeySender
	Capture  game.Capture
	Detector DetectorFactory
	Notify   notify.Sink
	RNG      *rng.Rng
	// Receiver is optional; set, it is polled once per tick.
	Receiver *game.KeyReceiver
	// Navigator is optional; nil disables platform pathing.
	Navigator Navigator
	Player    PlayerConfig
}

func NewDriver(opts DriverOptions) *Driver {
	d := &Driver{
		settings:    opts.Settings,
		capture:     opts.Capture,
		detector:    opts.Detector,
		receiver:    opts.Receiver,
		playerState: NewPlayerState(opts.Player),
		rotator:     NewRotator(),
		requests:    make(chan func(*Driver), 16),
		overrunLog:  newRateLimitedLog(5 * time.Second),
	}
	d.ctx = Context{
		Handle:    opts.Handle,
		Keys:      opts.Keys,
		RNG:       opts.RNG,
		Notify:    opts.Notify,
		Navigator: opts.Navigator,
		Minimap:   Minimap{},
		Player:    &Detecting{},
	}
	for i := range d.skillStates {
		d.skillStates[i] = NewSkillState(detect.SkillKind(i))
	}
	for i := range d.buffStates {
		d.buffStates[i] = NewBuffState(detect.BuffKind(i))
	}
	return d
}

// Run drives ticks until ctx is cancelled. At most one loop runs per Driver;
// a second call returns ErrAlreadyRunning.
func (d *Driver) Run(ctx context.Context) error {
	if !d.looping.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.looping.Store(false)

	d.ctx.Operation = NewOperation(
		time.Duration(d.settings.CycleRunDurationMillis)*time.Millisecond,
		time.Duration(d.settings.CycleStopDurationMillis)*time.Millisecond,
		time.Now(),
	)
	slog.Info("tick loop started", "fps", FPS)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick loop stopped")
			return ctx.Err()
		default:
		}

		start := time.Now()
		d.tick(start)
		if elapsed := time.Since(start); elapsed < tickDuration {
			time.Sleep(tickDuration - elapsed)
		} else {
			d.overrunLog.Warn("tick overran frame budget",
				"elapsed", elapsed, "budget", tickDuration)
		}
	}
}

func (d *Driver) tick(now time.Time) {
	frame, err := d.capture.Grab()
	if err != nil {
		frame = nil
	}
	wasAlive := !d.playerState.IsDead()
	wasNavigating := d.ctx.Navigator != nil &&
		d.ctx.Navigator.WasLastPointAvailableOrCompleted()

	d.ctx.Tick++
	var cycledToHalt bool
	d.ctx.Operation, cycledToHalt = d.ctx.Operation.Advance(now)

	if frame != nil {
		d.ctx.Detector = detect.NewCached(d.detector(frame))
		wasMinimapIdle := d.ctx.Minimap.IsIdle()

		d.ctx.Minimap = foldContext(&d.ctx, d.ctx.Minimap, &d.minimapState)
		d.ctx.DidMinimapChange = wasMinimapIdle && !d.ctx.Minimap.IsIdle()
		d.ctx.Player = foldPlayer(&d.ctx, d.ctx.Player, d.playerState)
		for i := range d.ctx.Skills {
			d.ctx.Skills[i] = foldContext(&d.ctx, d.ctx.Skills[i], &d.skillStates[i])
		}
		for i := range d.ctx.Buffs {
			d.ctx.Buffs[i] = foldContext(&d.ctx, d.ctx.Buffs[i], &d.buffStates[i])
		}

		// Always last so navigation and rotation see this tick's
		// committed states.
		if d.ctx.Navigator != nil {
			d.ctx.Navigator.Update(&d.ctx)
		}
		d.rotator.RotateAction(&d.ctx, d.playerState)
	} else {
		d.ctx.Detector = nil
		d.ctx.DidMinimapChange = false
	}

	if sender, ok := d.ctx.Keys.(*game.DefaultKeySender); ok {
		sender.UpdateInputDelay(d.ctx.Tick)
		sender.Flush(now)
	}
	if d.receiver != nil {
		d.receiver.Poll()
	}
	d.ctx.Notify.UpdateScheduledFrames(func() []byte {
		return encodePNG(frame)
	})
	d.pollRequests()

	if cycledToHalt {
		d.rotator.Reset()
		d.playerState.ClearActionsAborted(false)
		d.ctx.Player = &Panicking{To: PanicToTown}
	}
	d.updateHaltState(now, wasAlive, wasNavigating)
}

// updateHaltState handles death and unexpected map changes: the player dying
// halts outright, a persistent minimap change halts and parks the player in
// town when configured, and either raises a notification.
func (d *Driver) updateHaltState(now time.Time, wasAlive, wasNavigating bool) {
	if !d.mapAttached || d.ctx.Operation.Halting() {
		return
	}
	if wasNavigating {
		d.pendingHalt = nil
	}

	playerDied := wasAlive && d.playerState.IsDead()
	panickingToChannel := false
	if p, ok := d.ctx.Player.(*Panicking); ok && p.To == PanicToChannel {
		panickingToChannel = true
	}
	pendingHaltReached := d.pendingHalt != nil &&
		now.Sub(*d.pendingHalt) >= pendingHaltAfter
	canHaltOrNotify := pendingHaltReached ||
		(d.ctx.DidMinimapChange && !panickingToChannel)

	switch {
	case playerDied:
		d.halt(false)
	case canHaltOrNotify && d.settings.StopOnFailOrChangeMap:
		if d.pendingHalt == nil {
			armed := now
			d.pendingHalt = &armed
		} else {
			d.pendingHalt = nil
			d.halt(true)
		}
	}
	if canHaltOrNotify && d.pendingHalt == nil {
		if err := d.ctx.Notify.Schedule(notify.FailOrMapChange); err != nil {
			slog.Warn("scheduling notification", "error", err)
		}
	}
}

func (d *Driver) halt(panicToTown bool) {
	d.ctx.Operation = d.ctx.Operation.Halt()
	d.rotator.Reset()
	d.playerState.ClearActionsAborted(false)
	if panicToTown {
		d.ctx.Player = &Panicking{To: PanicToTown}
	}
}

// post queues fn to run on the tick thread. Requests are dropped with a
// warning when the queue backs up rather than stalling the caller.
func (d *Driver) post(fn func(*Driver)) {
	select {
	case d.requests <- fn:
	default:
		slog.Warn("driver request queue full, dropping request")
	}
}

func (d *Driver) pollRequests() {
	for {
		select {
		case fn := <-d.requests:
			fn(d)
		default:
			return
		}
	}
}

// UpdateSettings swaps the settings snapshot and rebuilds the duty cycle
// from the new durations unless a halt is in force.
func (d *Driver) UpdateSettings(settings config.Settings) {
	d.post(func(d *Driver) {
		d.settings = settings
		if !d.ctx.Operation.Halting() {
			d.ctx.Operation = NewOperation(
				time.Duration(settings.CycleRunDurationMillis)*time.Millisecond,
				time.Duration(settings.CycleStopDurationMillis)*time.Millisecond,
				time.Now(),
			)
		}
	})
}

// UpdatePlayer swaps the player configuration.
func (d *Driver) UpdatePlayer(cfg PlayerConfig) {
	d.post(func(d *Driver) {
		d.playerState.Config = cfg
	})
}

// AttachMap supplies the platforms and action rotation for the current map
// and resets detection so the minimap re-anchors against it.
func (d *Driver) AttachMap(platforms []pathing.Platform, actions []Action) {
	d.post(func(d *Driver) {
		d.minimapState.SetPlatforms(platforms)
		d.rotator.BuildActions(actions)
		d.playerState.ClearActionsAborted(false)
		d.ctx.Minimap = Minimap{}
		d.ctx.Player = &Detecting{}
		d.pendingHalt = nil
		d.mapAttached = true
	})
}

// DetachMap drops the attached map; the loop keeps ticking but stops
// rotating actions and handling map changes.
func (d *Driver) DetachMap() {
	d.post(func(d *Driver) {
		d.minimapState.SetPlatforms(nil)
		d.rotator.Reset()
		d.rotator.BuildActions(nil)
		d.playerState.ClearActionsAborted(false)
		d.pendingHalt = nil
		d.mapAttached = false
	})
}

// Halt suppresses inputs and aborts in-flight actions until Resume.
func (d *Driver) Halt() {
	d.post(func(d *Driver) {
		d.halt(false)
		d.ctx.Player = &Idle{}
	})
}

// Resume restarts the duty cycle from the configured durations.
func (d *Driver) Resume() {
	d.post(func(d *Driver) {
		d.pendingHalt = nil
		d.ctx.Operation = NewOperation(
			time.Duration(d.settings.CycleRunDurationMillis)*time.Millisecond,
			time.Duration(d.settings.CycleStopDurationMillis)*time.Millisecond,
			time.Now(),
		)
	})
}

// encodePNG renders a BGRA frame as PNG for notification attachments.
func encodePNG(frame *game.Frame) []byte {
	if frame == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		src := frame.BGRA[y*frame.Stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < frame.Width; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = 0xff
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
