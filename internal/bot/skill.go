package bot

import (
	"time"

	"github.com/riverbell/mapler/internal/detect"
	"github.com/riverbell/mapler/internal/task"
)

// SkillState is a skill's persistent companion.
type SkillState struct {
	Kind detect.SkillKind
	slot *task.Task[bool]
}

func NewSkillState(kind detect.SkillKind) SkillState {
	return SkillState{Kind: kind}
}

type skillPhase int

const (
	skillDetecting skillPhase = iota
	skillCooling
	skillReady
)

// Skill tracks a skill's cooldown from its on-screen icon. JustOffCooldown
// is an edge flag set only on the tick the skill transitions to ready; the
// rotator's off-cooldown condition consumes it.
type Skill struct {
	phase skillPhase
	// JustOffCooldown holds for exactly one committed state.
	JustOffCooldown bool
}

func (s Skill) Ready() bool { return s.phase == skillReady }

func (s Skill) Update(ctx *Context, state *SkillState) (Skill, Flow) {
	kind := state.Kind
	update := pollDetection(ctx, time.Second, &state.slot, func(d *detect.Cached) (bool, error) {
		return d.DetectSkillOffCooldown(kind)
	})

	s.JustOffCooldown = false
	if ready, ok := update.Ok(); ok {
		if ready {
			s.JustOffCooldown = s.phase != skillReady
			s.phase = skillReady
		} else {
			s.phase = skillCooling
		}
	} else if _, failed := update.Err(); failed {
		s.phase = skillCooling
	}
	return s, FlowNext
}
