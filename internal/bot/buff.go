package bot

import (
	"time"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/task"
)

// BuffState is a buff's persistent companion.
type BuffState struct {
	Kind detect.BuffKind
	slot *task.Task[bool]
}

func NewBuffState(kind detect.BuffKind) BuffState {
	return BuffState{Kind: kind}
}

type buffPhase int

const (
	buffDetecting buffPhase = iota
	buffNo
	buffPresent
)

// Buff tracks whether one buff icon is on screen. The only externally
// observed signal is present vs not; rune validation reads the rune buff.
type Buff struct {
	phase buffPhase
}

func (b Buff) Present() bool { return b.phase == buffPresent }

func (b Buff) Update(ctx *Context, state *BuffState) (Buff, Flow) {
	kind := state.Kind
	update := pollDetection(ctx, 5*time.Second, &state.slot, func(d *detect.Cached) (bool, error) {
		return d.DetectPlayerBuff(kind)
	})
	if present, ok := update.Ok(); ok {
		if present {
			b.phase = buffPresent
		} else {
			b.phase = buffNo
		}
	} else if _, failed := update.Err(); failed {
		b.phase = buffNo
	}
	return b, FlowNext
}
