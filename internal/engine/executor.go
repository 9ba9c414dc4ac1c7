package engine

import (
	"math"
	"math/rand"

	"skyhunt/server/internal/arena"
)

const (
	// baseThreatRadius is the unscaled distance at which a shot registers
	// as a threat for calm bookkeeping. Courage shrinks the effective
	// radius: brave targets shrug off shots a timid one would flee.
	baseThreatRadius = 120.0

	// courageFailChance is the per-tick break-off probability for a target
	// with zero courage. Scaled down by the drawn courage trait.
	courageFailChance = 0.02

	// waypointRadius is the arrival distance for patrol waypoints.
	waypointRadius = 8.0

	// dangerLookahead is how far ahead an evading target samples the
	// danger grid before committing to a heading.
	dangerLookahead = arena.RegionSize

	// dangerThreshold is the normalised strike score above which an
	// evading target steers around a region.
	dangerThreshold = 0.6

	// edgeEpsilon pads edge detection against float drift after clamping.
	edgeEpsilon = 0.5

	// fastPointerSpeed is the pointer speed in px/s that saturates the
	// threat assessment's speed component.
	fastPointerSpeed = 400.0
)

// StepContext carries the per-tick world view handed to every target. The
// Memory snapshot and Forecast are taken once before any target steps, so
// the order targets are stepped in cannot change what any of them observes.
type StepContext struct {
	Tick   uint64
	DT     float64
	Bounds arena.Config
	Level  int

	Player   PlayerSample
	Forecast Forecast
	Memory   MemorySnapshot
	Shots    []ShotSample

	RNG *rand.Rand

	// RetreatWraps selects the mode policy for targets that reach a
	// playfield edge while retreating: wrap to the opposite side instead
	// of despawning.
	RetreatWraps bool
}

type stepEnv struct {
	cfg    *CompiledConfig
	tgt    *Target
	ctx    StepContext
	bounds arena.Config
}

// Step advances one target by one tick: evaluate the current state's
// transitions in authoring order, switch on the first that fires, then run
// the (possibly new) state's movement behaviour. Step mutates the target's
// state and blackboard; the caller owns position integration and despawn.
func Step(cfg *CompiledConfig, tgt *Target, ctx StepContext) Decision {
	if cfg == nil || tgt == nil || tgt.State >= stateCount {
		return Decision{}
	}
	env := &stepEnv{cfg: cfg, tgt: tgt, ctx: ctx, bounds: ctx.Bounds.Normalized()}

	if env.shotWithin(threatRadius(tgt.Personality.Courage)) {
		tgt.Blackboard.LastThreatTick = ctx.Tick
	}

	for _, transition := range cfg.states[tgt.State].transitions {
		params := cfg.transitionParams[transition.paramIndex]
		if !env.evaluateCondition(transition.conditionID, params) {
			continue
		}
		if !env.passWeight(transition.weightID) {
			continue
		}
		if transition.conditionID == conditionEdgeReached {
			if !ctx.RetreatWraps {
				return Decision{State: tgt.State, Despawn: true}
			}
			env.wrapHorizontal()
		}
		EnterState(cfg, tgt, transition.toState, ctx.Tick, ctx.RNG)
		break
	}

	velocity := env.move(cfg.states[tgt.State].move)
	return Decision{State: tgt.State, Velocity: velocity}
}

// EnterState switches a target to a new behaviour state and rearms its
// blackboard timers. The dwell timer is drawn from the state's configured
// duration range; states without one never expire on their own.
func EnterState(cfg *CompiledConfig, tgt *Target, to BehaviorState, tick uint64, rng *rand.Rand) {
	if cfg == nil || tgt == nil || to >= stateCount {
		return
	}
	bb := &tgt.Blackboard
	bb.StateEnteredTick = tick
	bb.WaitUntil = 0

	state := cfg.states[to]
	if state.durationMin > 0 {
		dwell := state.durationMin
		if state.durationMax > state.durationMin && rng != nil {
			dwell += rng.Uint64() % (state.durationMax - state.durationMin + 1)
		}
		bb.WaitUntil = tick + dwell
	}

	switch to {
	case StatePatrol:
		bb.WaypointIndex = 0
		bb.RouteComplete = false
	case StateNormal:
		bb.VerticalDrift = 0
	}
	tgt.State = to
}

func threatRadius(courage float64) float64 {
	return baseThreatRadius * (1.5 - courage)
}

// threatLevel scores how dangerous the shooter looks right now, in [0,1]:
// proximity weighs 40%, their running accuracy 40%, pointer speed 20%.
func (env *stepEnv) threatLevel() float64 {
	aim := env.playerAim()
	span := math.Hypot(env.bounds.Width, env.bounds.Height)
	proximity := 1 - arena.Clamp(arena.Distance(env.tgt.Pos, aim)/span, 0, 1)

	speed := 0.0
	if history := env.ctx.Memory.History; len(history) >= 2 {
		last := history[len(history)-1]
		prev := history[len(history)-2]
		if dt := last.At.Sub(prev.At).Seconds(); dt > 0 {
			speed = arena.Clamp(arena.Distance(last.Pos, prev.Pos)/dt/fastPointerSpeed, 0, 1)
		}
	}

	return 0.4*proximity + 0.4*env.ctx.Memory.Accuracy + 0.2*speed
}

func (env *stepEnv) shotWithin(radius float64) bool {
	for _, shot := range env.ctx.Shots {
		if arena.Distance(shot.Pos, env.tgt.Pos) <= radius {
			return true
		}
	}
	return false
}

func (env *stepEnv) evaluateCondition(id conditionID, params transitionParams) bool {
	bb := &env.tgt.Blackboard
	switch id {
	case conditionShotNearby:
		radius := params.Radius
		if radius <= 0 {
			radius = baseThreatRadius
		}
		return env.shotWithin(radius * (1.5 - env.tgt.Personality.Courage))
	case conditionTimerExpired:
		return bb.WaitUntil > 0 && env.ctx.Tick >= bb.WaitUntil
	case conditionCalm:
		cooldown := scaleCooldown(params.CooldownTicks, env.tgt.Personality.Agility)
		if env.ctx.Tick < bb.StateEnteredTick+cooldown {
			return false
		}
		return env.ctx.Tick >= bb.LastThreatTick+cooldown
	case conditionTookDamage:
		return bb.DamagedTick > 0 && bb.DamagedTick >= bb.StateEnteredTick
	case conditionCourageFails:
		if env.ctx.RNG == nil {
			return false
		}
		chance := courageFailChance * (1 - env.tgt.Personality.Courage) * (0.5 + env.threatLevel())
		return env.ctx.RNG.Float64() < chance
	case conditionForecastNear:
		if env.ctx.Forecast.Confidence < params.MinConfidence {
			return false
		}
		radius := params.Radius
		if radius <= 0 {
			radius = baseThreatRadius
		}
		return arena.Distance(env.tgt.Pos, env.ctx.Forecast.Position) <= radius
	case conditionRouteComplete:
		return bb.RouteComplete
	case conditionEdgeReached:
		if env.ctx.Tick < bb.StateEnteredTick+params.CooldownTicks {
			return false
		}
		return env.atHorizontalEdge()
	default:
		return false
	}
}

// scaleCooldown lengthens a cooldown for sluggish targets. Agility 1 keeps
// the configured value, agility 0 doubles it.
func scaleCooldown(ticks uint64, agility float64) uint64 {
	return uint64(math.Round(float64(ticks) * (2 - arena.Clamp(agility, 0, 1))))
}

func (env *stepEnv) passWeight(id weightID) bool {
	ranges := env.cfg.personality
	traits := env.tgt.Personality
	var probability float64
	switch id {
	case weightAlways:
		return true
	case weightTimid:
		probability = normalizeTrait(traits.Courage, ranges.Courage)
		probability = 1 - probability
	case weightCourage:
		probability = normalizeTrait(traits.Courage, ranges.Courage)
	case weightAgility:
		probability = normalizeTrait(traits.Agility, ranges.Agility)
	case weightIntelligence:
		probability = normalizeTrait(traits.Intelligence, ranges.Intelligence)
	default:
		return false
	}
	if probability >= 1 {
		return true
	}
	if probability <= 0 || env.ctx.RNG == nil {
		return false
	}
	return env.ctx.RNG.Float64() < probability
}

// normalizeTrait maps a drawn trait onto [0,1] within its configured range,
// so a draw at the range minimum always yields 0 and the maximum yields 1
// regardless of archetype tuning.
func normalizeTrait(value float64, tr TraitRange) float64 {
	if tr.Max <= tr.Min {
		return 0
	}
	return arena.Clamp((value-tr.Min)/(tr.Max-tr.Min), 0, 1)
}

func (env *stepEnv) atHorizontalEdge() bool {
	x := env.tgt.Pos.X
	return x <= arena.TargetHalf+edgeEpsilon || x >= env.bounds.Width-arena.TargetHalf-edgeEpsilon
}

func (env *stepEnv) wrapHorizontal() {
	if env.tgt.Pos.X <= env.bounds.Width/2 {
		env.tgt.Pos.X = env.bounds.Width - arena.TargetHalf
	} else {
		env.tgt.Pos.X = arena.TargetHalf
	}
}

func (env *stepEnv) move(move compiledMove) arena.Vec2 {
	params := env.cfg.moveParams[move.paramIndex]
	switch move.id {
	case moveRandomWalk:
		return env.moveRandomWalk(params)
	case moveEvade:
		return env.moveEvade(params)
	case movePursue:
		return env.movePursue(params)
	case movePatrol:
		return env.movePatrol(params)
	case moveIntercept:
		return env.moveIntercept(params)
	case moveRetreat:
		return env.moveRetreat(params)
	default:
		return arena.Vec2{}
	}
}

func (env *stepEnv) stateSpeed(params moveParams, traitFactor float64) float64 {
	return env.cfg.Speed(env.ctx.Level) * params.SpeedFactor * traitFactor
}

// playerAim resolves the best available player position: live pointer first,
// then the newest shared-history sample, then the playfield centre.
func (env *stepEnv) playerAim() arena.Vec2 {
	if env.ctx.Player.Known {
		return env.ctx.Player.Pos
	}
	if last, ok := env.ctx.Memory.LastKnown(); ok {
		return last.Pos
	}
	return env.bounds.Center()
}

func (env *stepEnv) moveRandomWalk(params moveParams) arena.Vec2 {
	bb := &env.tgt.Blackboard
	if bb.Direction == 0 {
		bb.Direction = 1
		if env.ctx.RNG != nil && env.ctx.RNG.Float64() < 0.5 {
			bb.Direction = -1
		}
	}
	if env.tgt.Pos.X <= arena.TargetHalf+edgeEpsilon {
		bb.Direction = 1
	} else if env.tgt.Pos.X >= env.bounds.Width-arena.TargetHalf-edgeEpsilon {
		bb.Direction = -1
	}

	if env.ctx.RNG != nil {
		bb.VerticalDrift += (env.ctx.RNG.Float64()*2 - 1) * params.JitterScale * env.ctx.DT * 4
	}
	bb.VerticalDrift = arena.Clamp(bb.VerticalDrift, -params.JitterScale, params.JitterScale)
	if env.tgt.Pos.Y <= arena.TargetHalf+edgeEpsilon {
		bb.VerticalDrift = math.Abs(bb.VerticalDrift)
	} else if env.tgt.Pos.Y >= env.bounds.Height-arena.TargetHalf-edgeEpsilon {
		bb.VerticalDrift = -math.Abs(bb.VerticalDrift)
	}

	speed := env.stateSpeed(params, 1)
	return arena.Vec2{X: bb.Direction * speed, Y: bb.VerticalDrift}
}

func (env *stepEnv) moveEvade(params moveParams) arena.Vec2 {
	threat := env.playerAim()
	away := arena.Normalize(arena.Vec2{X: env.tgt.Pos.X - threat.X, Y: env.tgt.Pos.Y - threat.Y})
	if away.X == 0 && away.Y == 0 {
		away = arena.RandomUnitVector(env.ctx.RNG)
	}

	// Blend the learned escape heading in proportion to intelligence.
	threatBucket := arena.HeadingBucket(arena.Vec2{X: threat.X - env.tgt.Pos.X, Y: threat.Y - env.tgt.Pos.Y})
	direction := away
	if learned, ok := env.ctx.Memory.BestEvasion(env.tgt.State, threatBucket); ok {
		blend := 0.5 * env.tgt.Personality.Intelligence
		direction = arena.Normalize(arena.Add(
			arena.Scale(away, 1-blend),
			arena.Scale(learned, blend),
		))
		if direction.X == 0 && direction.Y == 0 {
			direction = away
		}
	}
	direction = env.steerAroundDanger(direction)

	env.tgt.Blackboard.LastEvasion = arena.HeadingBucket(direction)
	speed := env.stateSpeed(params, 0.5+0.5*env.tgt.Personality.Agility)
	return arena.Scale(direction, speed)
}

// steerAroundDanger rotates a heading away from high-strike regions. The
// least dangerous of the straight heading and four rotations wins; ties keep
// the earlier candidate so the straight heading is preferred.
func (env *stepEnv) steerAroundDanger(direction arena.Vec2) arena.Vec2 {
	ahead := arena.Add(env.tgt.Pos, arena.Scale(direction, dangerLookahead))
	best := direction
	bestScore := env.ctx.Memory.DangerScore(env.bounds.RegionFor(ahead))
	if bestScore <= dangerThreshold {
		return direction
	}
	for _, offset := range [...]float64{math.Pi / 4, -math.Pi / 4, math.Pi / 2, -math.Pi / 2} {
		candidate := rotate(direction, offset)
		probe := arena.Add(env.tgt.Pos, arena.Scale(candidate, dangerLookahead))
		score := env.ctx.Memory.DangerScore(env.bounds.RegionFor(probe))
		if score < bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

func rotate(v arena.Vec2, angle float64) arena.Vec2 {
	sin, cos := math.Sincos(angle)
	return arena.Vec2{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

func (env *stepEnv) movePursue(params moveParams) arena.Vec2 {
	aim := env.playerAim()
	direction := arena.Normalize(arena.Vec2{X: aim.X - env.tgt.Pos.X, Y: aim.Y - env.tgt.Pos.Y})
	speed := env.stateSpeed(params, 0.5+0.5*env.tgt.Personality.Courage)
	return arena.Scale(direction, speed)
}

func (env *stepEnv) movePatrol(params moveParams) arena.Vec2 {
	bb := &env.tgt.Blackboard
	if len(bb.Waypoints) == 0 {
		bb.RouteComplete = true
		return arena.Vec2{}
	}
	if bb.WaypointIndex >= len(bb.Waypoints) {
		bb.WaypointIndex = len(bb.Waypoints) - 1
	}
	waypoint := bb.Waypoints[bb.WaypointIndex]
	if arena.Distance(env.tgt.Pos, waypoint) <= waypointRadius {
		if bb.WaypointIndex == len(bb.Waypoints)-1 {
			bb.RouteComplete = true
			return arena.Vec2{}
		}
		bb.WaypointIndex++
		waypoint = bb.Waypoints[bb.WaypointIndex]
	}
	direction := arena.Normalize(arena.Vec2{X: waypoint.X - env.tgt.Pos.X, Y: waypoint.Y - env.tgt.Pos.Y})
	return arena.Scale(direction, env.stateSpeed(params, 1))
}

func (env *stepEnv) moveIntercept(params moveParams) arena.Vec2 {
	aim := env.ctx.Forecast.Position
	if last, ok := env.ctx.Memory.LastKnown(); ok {
		// Smarter targets trust the forecast; the rest fall back toward
		// the last confirmed sighting.
		trust := env.tgt.Personality.Intelligence * env.ctx.Forecast.Confidence
		aim = arena.Add(
			arena.Scale(last.Pos, 1-trust),
			arena.Scale(env.ctx.Forecast.Position, trust),
		)
	}
	direction := arena.Normalize(arena.Vec2{X: aim.X - env.tgt.Pos.X, Y: aim.Y - env.tgt.Pos.Y})
	return arena.Scale(direction, env.stateSpeed(params, 1))
}

func (env *stepEnv) moveRetreat(params moveParams) arena.Vec2 {
	directionX := 1.0
	if env.tgt.Pos.X < env.bounds.Width/2 {
		directionX = -1
	}
	direction := arena.Normalize(arena.Vec2{X: directionX, Y: -0.35})
	speed := env.stateSpeed(params, 0.5+0.5*env.tgt.Personality.Agility)
	return arena.Scale(direction, speed)
}
