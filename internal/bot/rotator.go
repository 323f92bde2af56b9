package bot

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/riverbell/mapler/internal/detect"
)

type rotatorEntry struct {
	ID     uuid.UUID
	Action Action
	// Linked actions immediately following this entry in the configured
	// list; dispatched consecutively after it completes.
	Linked []rotatorEntry
}

type priorityEntry struct {
	rotatorEntry
	Condition ActionCondition
	// EveryTicks applies to ConditionEveryMillis.
	EveryTicks uint64
	// lastDispatchTick is when this entry last fired; zero means never.
	lastDispatchTick uint64
	dispatched       bool
}

// Rotator owns the configured action lists and feeds the player one action
// at a time: priority actions when their condition fires, the normal
// rotation otherwise.
type Rotator struct {
	normal      []rotatorEntry
	normalIndex int
	// pendingLinked is the linked run of the last dispatched normal
	// anchor; priorityLinked the run of the last priority anchor. Each
	// inherits its anchor's dispatch path.
	pendingLinked  []rotatorEntry
	priorityLinked []rotatorEntry
	priority       []priorityEntry
}

func NewRotator() *Rotator {
	return &Rotator{}
}

// BuildActions groups the configured actions into the normal rotation and
// the priority sets. A Linked action attaches to the nearest preceding
// non-linked anchor and inherits its dispatch.
func (r *Rotator) BuildActions(actions []Action) {
	r.normal = nil
	r.priority = nil
	r.normalIndex = 0
	r.pendingLinked = nil
	r.priorityLinked = nil

	// Anchors are tracked by index so appends cannot invalidate them.
	anchorPriority := false
	anchorIndex := -1
	toFront := make([]bool, 0)

	for _, action := range actions {
		entry := rotatorEntry{ID: uuid.New(), Action: action}
		switch actionCondition(action) {
		case ConditionLinked:
			if anchorIndex < 0 {
				// A linked action with no anchor has nothing to
				// inherit; drop it.
				slog.Warn("linked action without anchor dropped", "action", actionString(action))
				continue
			}
			if anchorPriority {
				anchor := &r.priority[anchorIndex]
				anchor.Linked = append(anchor.Linked, entry)
			} else {
				anchor := &r.normal[anchorIndex]
				anchor.Linked = append(anchor.Linked, entry)
			}
		case ConditionAny:
			r.normal = append(r.normal, entry)
			anchorPriority, anchorIndex = false, len(r.normal)-1
		case ConditionEveryMillis:
			r.priority = append(r.priority, priorityEntry{
				rotatorEntry: entry,
				Condition:    ConditionEveryMillis,
				EveryTicks:   uint64(actionEveryMillis(action).Milliseconds()) / MsPerTick,
			})
			toFront = append(toFront, actionQueueToFront(action))
			anchorPriority, anchorIndex = true, len(r.priority)-1
		case ConditionErdaShowerOffCooldown:
			r.priority = append(r.priority, priorityEntry{
				rotatorEntry: entry,
				Condition:    ConditionErdaShowerOffCooldown,
			})
			toFront = append(toFront, actionQueueToFront(action))
			anchorPriority, anchorIndex = true, len(r.priority)-1
		}
	}

	// queue_to_front entries move ahead of the rest, keeping their own
	// relative order.
	front := make([]priorityEntry, 0, len(r.priority))
	rest := make([]priorityEntry, 0, len(r.priority))
	for i, p := range r.priority {
		if toFront[i] {
			front = append(front, p)
		} else {
			rest = append(rest, p)
		}
	}
	r.priority = append(front, rest...)
}

// Reset clears the rotation progress and any pending linked run. Used on
// cycle-stop and when the host replaces the preset.
func (r *Rotator) Reset() {
	r.normalIndex = 0
	r.pendingLinked = nil
	r.priorityLinked = nil
	for i := range r.priority {
		r.priority[i].lastDispatchTick = 0
		r.priority[i].dispatched = false
	}
}

// RotateAction feeds the player its next action for this tick.
func (r *Rotator) RotateAction(ctx *Context, state *PlayerState) {
	if ctx.Operation.Halting() {
		return
	}

	// The rune preempts everything else; it expires if left alone.
	if idle := ctx.Minimap.Idle; idle != nil && !state.HasPriorityAction() && !state.IsValidatingRune() {
		if _, ok := idle.Rune(); ok {
			slog.Info("dispatching rune solve")
			state.SetPriorityAction(uuid.New(), ActionSolveRune{})
			return
		}
	}

	if !state.HasPriorityAction() {
		// A completed priority anchor drains its linked run, as priority,
		// before any other priority entry fires.
		if len(r.priorityLinked) > 0 {
			entry := r.priorityLinked[0]
			r.priorityLinked = r.priorityLinked[1:]
			slog.Debug("dispatching priority linked action", "action", actionString(entry.Action))
			state.SetPriorityAction(entry.ID, entry.Action)
			return
		}
		if entry, ok := r.firePriority(ctx); ok {
			slog.Debug("dispatching priority action", "action", actionString(entry.Action))
			state.SetPriorityAction(entry.ID, entry.Action)
			// Copied so pops never alias the stored rotation.
			r.priorityLinked = append([]rotatorEntry(nil), entry.Linked...)
			return
		}
	}

	if state.HasNormalAction() {
		return
	}

	// A completed anchor flushes its linked run before rotation advances.
	if len(r.pendingLinked) > 0 {
		entry := r.pendingLinked[0]
		r.pendingLinked = r.pendingLinked[1:]
		slog.Debug("dispatching linked action", "action", actionString(entry.Action))
		state.SetNormalAction(entry.ID, entry.Action)
		return
	}

	if len(r.normal) == 0 {
		return
	}
	entry := r.normal[r.normalIndex]
	r.normalIndex = (r.normalIndex + 1) % len(r.normal)
	r.pendingLinked = append([]rotatorEntry(nil), entry.Linked...)
	slog.Debug("dispatching normal action", "action", actionString(entry.Action))
	state.SetNormalAction(entry.ID, entry.Action)
}

// firePriority returns the first priority entry whose condition fires.
func (r *Rotator) firePriority(ctx *Context) (rotatorEntry, bool) {
	for i := range r.priority {
		p := &r.priority[i]
		switch p.Condition {
		case ConditionEveryMillis:
			if p.EveryTicks == 0 {
				continue
			}
			if !p.dispatched || ctx.Tick-p.lastDispatchTick >= p.EveryTicks {
				p.lastDispatchTick = ctx.Tick
				p.dispatched = true
				return p.rotatorEntry, true
			}
		case ConditionErdaShowerOffCooldown:
			if ctx.Skills[detect.SkillErdaShower].JustOffCooldown {
				p.lastDispatchTick = ctx.Tick
				p.dispatched = true
				return p.rotatorEntry, true
			}
		}
	}
	return rotatorEntry{}, false
}

// QueueToFront moves the priority entry with id to the head of the priority
// list.
func (r *Rotator) QueueToFront(id uuid.UUID) {
	for i := range r.priority {
		if r.priority[i].ID == id && i > 0 {
			entry := r.priority[i]
			r.priority = append(r.priority[:i], r.priority[i+1:]...)
			r.priority = append([]priorityEntry{entry}, r.priority...)
			return
		}
	}
}
