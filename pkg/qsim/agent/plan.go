// Package agent models a traveller's daily plan, the vehicles that
// carry it through network legs, and the garage that owns vehicle
// instances between legs.
package agent

import "math"

// Activity is one stop in a plan: a link location, a type used for
// ActStart/ActEnd events, and the timing rule that governs when the
// agent wakes up.
type Activity struct {
	Link    uint64
	ActType string
	EndTime *uint32
	MaxDur  *uint32
}

// EffectiveEndTime computes the activity's end time per spec.md §4.4:
// an explicit EndTime wins if earlier than begin+MaxDur; MaxDur alone
// is measured from begin_time, not now; with neither set the activity
// is open-ended.
func (a Activity) EffectiveEndTime(beginTime uint32) uint32 {
	hasEnd := a.EndTime != nil
	hasDur := a.MaxDur != nil
	switch {
	case hasEnd && hasDur:
		durEnd := beginTime + *a.MaxDur
		if *a.EndTime < durEnd {
			return *a.EndTime
		}
		return durEnd
	case hasEnd:
		return *a.EndTime
	case hasDur:
		return beginTime + *a.MaxDur
	default:
		return math.MaxUint32
	}
}

// Leg is one travel segment between activities: a mode and a route.
// PreplanningHorizon, when set, makes the activity engine notify the
// agent this many seconds before the *preceding* activity's end time,
// so an adaptive router can be asked for this leg's route ahead of
// departure.
type Leg struct {
	Mode               string
	Route              Route
	PreplanningHorizon *uint32
}

// Plan strictly alternates Activity, Leg, Activity, ... starting and
// ending with an Activity. Even elements are activities, odd are legs.
type Plan struct {
	Activities []Activity
	Legs       []Leg
}

// ActivityAt returns the activity at the given plan cursor (cursor
// counts activities: 0 is the first activity, 1 the second, etc).
func (p Plan) ActivityAt(cursor int) Activity { return p.Activities[cursor] }

// LegAt returns the leg following the activity at cursor.
func (p Plan) LegAt(cursor int) Leg { return p.Legs[cursor] }

// HasLegAfter reports whether a leg follows the activity at cursor,
// i.e. whether this is not the agent's last activity.
func (p Plan) HasLegAfter(cursor int) bool { return cursor < len(p.Legs) }

// Agent is a traveller executing Plan; PlanCursor indexes the current
// activity, RouteCursor indexes the traveller's position within the
// current leg's network route (reset to 0 on advance).
type Agent struct {
	ID          uint64
	Plan        Plan
	PlanCursor  int
	RouteCursor int
}

// CurrentActivity returns the activity the agent currently occupies.
func (a *Agent) CurrentActivity() Activity {
	return a.Plan.ActivityAt(a.PlanCursor)
}

// CurrentLeg returns the leg the agent is about to depart on, valid
// only once AdvanceToLeg semantics apply (PlanCursor points at an
// activity, the following leg is at the same index in Legs).
func (a *Agent) CurrentLeg() Leg {
	return a.Plan.LegAt(a.PlanCursor)
}

// HasNextLeg reports whether the current activity is followed by a
// leg, i.e. this is not the agent's final activity.
func (a *Agent) HasNextLeg() bool {
	return a.Plan.HasLegAfter(a.PlanCursor)
}

// AdvanceToLeg prepares the agent for the leg following its current
// activity: RouteCursor resets for the new leg's traversal. PlanCursor
// is left unchanged, since that leg sits at the same index in Legs.
func (a *Agent) AdvanceToLeg() {
	a.RouteCursor = 0
}

// AdvanceToActivity moves the cursor past the leg just completed, onto
// the next activity.
func (a *Agent) AdvanceToActivity() {
	a.PlanCursor++
	a.RouteCursor = 0
}
