// Package engine implements the four per-tick engines that drive an
// agent through its plan: the activity engine (sleep/wake/end), the
// leg engine (departure dispatch), the teleportation engine, and the
// network engine (node movement over pkg/qsim/network links).
package engine

import (
	"math"

	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/agent"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/events"
	"github.com/matsim-vsp/parallel-qsim-go/pkg/qsim/queue"
)

type asleepAgent struct {
	agent      *agent.Agent
	wakeupTime uint32
	beginTime  uint32
}

type awakeAgent struct {
	agent   *agent.Agent
	endTime uint32
}

// ActivityEngine holds every agent currently performing an activity,
// split between those still asleep (asleep_q) and those that have
// been notified of their wakeup but have not yet ended (awake_q).
type ActivityEngine struct {
	asleepQ *queue.TimeQueue[asleepAgent]
	awakeQ  []awakeAgent

	publisher *events.Publisher
}

// NewActivityEngine creates an empty activity engine publishing to pub.
func NewActivityEngine(pub *events.Publisher) *ActivityEngine {
	return &ActivityEngine{asleepQ: queue.New[asleepAgent](), publisher: pub}
}

// wakeupTimeFor applies the preplanning-horizon rule: if the leg
// following the current activity declares a horizon, the agent wakes
// that many seconds before the activity's effective end time.
func wakeupTimeFor(ag *agent.Agent, beginTime uint32) uint32 {
	act := ag.CurrentActivity()
	end := act.EffectiveEndTime(beginTime)
	if !ag.HasNextLeg() || end == math.MaxUint32 {
		return end
	}
	leg := ag.CurrentLeg()
	if leg.PreplanningHorizon == nil {
		return end
	}
	horizon := *leg.PreplanningHorizon
	if horizon >= end {
		return 0
	}
	return end - horizon
}

// ReceiveAgent admits an agent arriving (from the leg/teleport
// engines) at the start of an activity: emits ActStart and schedules
// its wakeup.
func (e *ActivityEngine) ReceiveAgent(ag *agent.Agent, now uint32) {
	act := ag.CurrentActivity()
	e.publisher.Publish(events.NewActStart(now, ag.ID, act.Link, act.ActType))

	wakeup := wakeupTimeFor(ag, now)
	e.asleepQ.Push(wakeup, asleepAgent{agent: ag, wakeupTime: wakeup, beginTime: now})
}

// Notification describes why the activity engine is notifying an
// agent: WokeUp is true once, on the tick the agent wakes; on every
// later tick the agent remains on awake_q it is notified again with
// WokeUp false. Both carry the projected end time.
type Notification struct {
	Agent   *agent.Agent
	WokeUp  bool
	EndTime uint32
}

// NotifyFunc lets callers (e.g. an adaptive router hook) observe
// wakeups and end-of-activity projections without the activity engine
// depending on a router interface directly.
type NotifyFunc func(Notification)

// DoStep advances the activity engine by one tick: wakes agents whose
// wakeup_time has arrived, notifies every awake agent, ends activities
// whose end_time has arrived, and returns the agents whose activity
// ended this tick (for the leg engine to dispatch).
func (e *ActivityEngine) DoStep(now uint32, notify NotifyFunc) []*agent.Agent {
	woken := e.asleepQ.PopReady(now)
	for _, aw := range woken {
		end := aw.agent.CurrentActivity().EffectiveEndTime(aw.beginTime)
		if notify != nil {
			notify(Notification{Agent: aw.agent, WokeUp: true, EndTime: end})
		}
		// Whether end <= now (end-after-wake-up) or not, the agent
		// lands on awake_q; the end() pass below removes it this same
		// tick if its end_time has already arrived.
		e.awakeQ = append(e.awakeQ, awakeAgent{agent: aw.agent, endTime: end})
	}

	if notify != nil {
		for _, aw := range e.awakeQ {
			if !containsAgent(woken, aw.agent) {
				notify(Notification{Agent: aw.agent, WokeUp: false, EndTime: aw.endTime})
			}
		}
	}

	var ending []*agent.Agent
	remaining := e.awakeQ[:0]
	for _, aw := range e.awakeQ {
		if aw.endTime <= now {
			ending = append(ending, aw.agent)
		} else {
			remaining = append(remaining, aw)
		}
	}
	e.awakeQ = remaining

	for _, ag := range ending {
		act := ag.CurrentActivity()
		e.publisher.Publish(events.NewActEnd(now, ag.ID, act.Link, act.ActType))
	}
	return ending
}

func containsAgent(items []asleepAgent, ag *agent.Agent) bool {
	for _, it := range items {
		if it.agent == ag {
			return true
		}
	}
	return false
}
