package game

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	combatCountdownSecs = 5
	maxHealth           = 100

	// a shot fired slightly early due to client/server clock skew still
	// counts; anything earlier than this is dropped
	fireTolerance = 10 * time.Millisecond
	// dead shooters get a short window so near-simultaneous kills trade
	tradeWindow = 300 * time.Millisecond
	// claimed firing origins further than this from the server-known
	// position are overridden rather than trusted
	originTolerance = 2.0

	eyeHeight     = 1.6
	capsuleHeight = 1.8
	capsuleRadius = 0.4
)

const (
	WEAPON_PISTOL  = "pistol"
	WEAPON_SHOTGUN = "shotgun"
	WEAPON_RIFLE   = "rifle"
)

type WeaponSpec struct {
	Pellets      int
	PelletDamage int
	Interval     time.Duration
	Spread       float64 // cone half-angle, radians
	Range        float64
}

var weaponSpecs = map[string]WeaponSpec{
	WEAPON_PISTOL:  {Pellets: 1, PelletDamage: 15, Interval: 250 * time.Millisecond, Spread: 0.01, Range: 200},
	WEAPON_SHOTGUN: {Pellets: 8, PelletDamage: 9, Interval: 900 * time.Millisecond, Spread: 0.08, Range: 40},
	WEAPON_RIFLE:   {Pellets: 1, PelletDamage: 40, Interval: 1200 * time.Millisecond, Spread: 0.002, Range: 200},
}

type CombatConfig struct {
	TimeLimit     time.Duration
	ScoreLimit    int
	RespawnDelay  time.Duration
	Invincibility time.Duration
	FriendlyFire  bool
}

func defaultCombatConfig(subMode string) CombatConfig {
	cfg := CombatConfig{
		TimeLimit:     3 * time.Minute,
		ScoreLimit:    20,
		RespawnDelay:  3 * time.Second,
		Invincibility: 2 * time.Second,
	}
	if subMode != SUBMODE_FFA {
		cfg.ScoreLimit = 50
	}
	return cfg
}

type combatGame struct {
	room    *Room
	subMode string
	cfg     CombatConfig

	countdown  int
	lastSecond time.Time
	startedAt  time.Time

	teamScores  map[string]int
	spawnCursor map[string]int
	done        bool
}

func newCombatGame(room *Room, subMode string, cfg CombatConfig) *combatGame {
	return &combatGame{
		room:        room,
		subMode:     subMode,
		cfg:         cfg,
		countdown:   combatCountdownSecs,
		teamScores:  make(map[string]int),
		spawnCursor: make(map[string]int),
	}
}

func (g *combatGame) teamMode() bool {
	// domination is scored like team mode for now
	return g.subMode == SUBMODE_TEAM || g.subMode == SUBMODE_DOMINATION
}

func (g *combatGame) begin(now time.Time) {
	g.lastSecond = now

	if g.teamMode() {
		g.teamScores["red"] = 0
		g.teamScores["blue"] = 0
		next := 0
		for _, p := range g.room.players {
			if p.team == "" {
				if next%2 == 0 {
					p.team = "red"
				} else {
					p.team = "blue"
				}
				next++
			}
		}
	}

	for _, p := range g.room.players {
		p.combat = &CombatState{Health: maxHealth, Alive: true, Weapon: WEAPON_PISTOL}
		p.pos = g.nextSpawn(p.team)
	}

	g.room.broadcast(makeEvent(EvCountdown, CountdownPayload{Seconds: g.countdown}))
}

// nextSpawn round-robins through the team's spawn list, falling back to the
// generic list, falling back to the origin.
func (g *combatGame) nextSpawn(team string) Vec3 {
	key := team
	points := g.room.spawnPoints[key]
	if len(points) == 0 {
		key = ""
		points = g.room.spawnPoints[""]
	}
	if len(points) == 0 {
		return Vec3{}
	}
	idx := g.spawnCursor[key] % len(points)
	g.spawnCursor[key] = idx + 1
	return points[idx]
}

func (g *combatGame) tick(now time.Time) {
	if g.done {
		return
	}

	if g.room.phase == PHASE_COUNTDOWN {
		if now.Sub(g.lastSecond) < time.Second {
			return
		}
		g.lastSecond = now
		g.countdown--
		g.room.broadcast(makeEvent(EvCountdown, CountdownPayload{Seconds: g.countdown}))
		if g.countdown <= 0 {
			g.start(now)
		}
		return
	}

	if now.Sub(g.startedAt) >= g.cfg.TimeLimit {
		g.end()
		return
	}

	for _, p := range g.room.players {
		cs := p.combat
		if cs == nil || cs.Alive || now.Before(cs.RespawnAt) {
			continue
		}
		g.respawn(p, now)
	}

	g.room.broadcast(makeEvent(EvCombatState, g.snapshot(now)))
}

func (g *combatGame) start(now time.Time) {
	g.room.phase = PHASE_PLAYING
	g.startedAt = now
	g.room.broadcast(makeEvent(EvCombatStarted, CombatStartedPayload{
		SubMode:    g.subMode,
		TimeLimit:  int(g.cfg.TimeLimit / time.Second),
		ScoreLimit: g.cfg.ScoreLimit,
	}))
	g.room.log.Info().Str("subMode", g.subMode).Msg("combat match started")
}

func (g *combatGame) respawn(p *Player, now time.Time) {
	cs := p.combat
	cs.Health = maxHealth
	cs.Alive = true
	cs.InvincibleUntil = now.Add(g.cfg.Invincibility)
	p.pos = g.nextSpawn(p.team)
	p.vel = Vec3{}

	g.room.broadcast(makeEvent(EvCombatRespawn, CombatRespawnPayload{
		PlayerId:     p.id,
		Pos:          p.pos,
		InvincibleMs: g.cfg.Invincibility.Milliseconds(),
	}))
}

func (g *combatGame) handle(envelope clientPacketEnvelope, now time.Time) {
	switch envelope.env.Type {
	case MsgCombatPos:
		g.handlePosition(envelope)
	case MsgCombatWeapon:
		g.handleWeapon(envelope)
	case MsgCombatShoot:
		g.handleShoot(envelope, now)
	}
}

func (g *combatGame) handlePosition(envelope clientPacketEnvelope) {
	var payload PositionPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if !payload.Pos.IsFinite() || !payload.Vel.IsFinite() || !isFinite(payload.RotY) {
		return
	}
	p := envelope.from
	p.pos = payload.Pos.Clamped(coordLimit)
	p.vel = payload.Vel.Clamped(coordLimit)
	p.rotY = payload.RotY
	p.anim = payload.Anim
}

func (g *combatGame) handleWeapon(envelope clientPacketEnvelope) {
	if envelope.from.combat == nil {
		return
	}
	var payload WeaponPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if _, known := weaponSpecs[payload.Weapon]; !known {
		g.room.nack(envelope, ErrUnknownWeapon)
		return
	}
	envelope.from.combat.Weapon = payload.Weapon
	g.room.ack(envelope, nil)
}

// handleShoot resolves one shot server-side: fire-rate check, origin
// validation, per-pellet cone spread and ray-versus-capsule tests against
// every eligible opponent, damage aggregated per victim before being applied.
func (g *combatGame) handleShoot(envelope clientPacketEnvelope, now time.Time) {
	p := envelope.from
	cs := p.combat
	if cs == nil {
		return
	}
	if !cs.Alive && now.Sub(cs.DiedAt) > tradeWindow {
		return
	}

	spec := weaponSpecs[cs.Weapon]
	if !cs.LastShot.IsZero() && now.Sub(cs.LastShot) < spec.Interval-fireTolerance {
		return
	}

	var payload ShootPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	dir := payload.Dir
	if !dir.IsFinite() {
		return
	}
	dir = dir.Normalized()
	if dir.Length() == 0 {
		return
	}
	cs.LastShot = now

	known := p.pos.Add(Vec3{Y: eyeHeight})
	origin := payload.Origin
	if !origin.IsFinite() || origin.DistanceTo(known) > originTolerance {
		origin = known
	}

	damage := make(map[*Player]int)
	hits := 0
	for i := 0; i < spec.Pellets; i++ {
		pelletDir := perturbCone(dir, spec.Spread, g.room.rng)
		if victim := g.closestHit(p, origin, pelletDir, spec.Range, now); victim != nil {
			damage[victim] += spec.PelletDamage
			hits++
		}
	}

	for victim, dmg := range damage {
		g.applyDamage(p, victim, dmg, origin, now)
		if g.done {
			break
		}
	}

	p.send(makeEvent(EvCombatShot, CombatShotPayload{Hits: hits}))
}

func (g *combatGame) closestHit(shooter *Player, origin, dir Vec3, maxRange float64, now time.Time) *Player {
	var best *Player
	bestT := maxRange
	for _, target := range g.room.players {
		if target == shooter || target.combat == nil || !target.combat.Alive {
			continue
		}
		if now.Before(target.combat.InvincibleUntil) {
			continue
		}
		if !g.cfg.FriendlyFire && g.teamMode() && target.team == shooter.team {
			continue
		}
		if t, ok := rayCapsule(origin, dir, target.pos, capsuleHeight, capsuleRadius); ok && t <= bestT {
			best = target
			bestT = t
		}
	}
	return best
}

func (g *combatGame) applyDamage(shooter, victim *Player, dmg int, origin Vec3, now time.Time) {
	vcs := victim.combat
	vcs.Health -= dmg
	if vcs.Health < 0 {
		vcs.Health = 0
	}

	hitDir := victim.pos.Add(Vec3{Y: eyeHeight / 2}).Sub(origin).Normalized()
	victim.send(makeEvent(EvCombatDamage, CombatDamagePayload{
		From:   shooter.id,
		Damage: dmg,
		Dir:    hitDir,
		Health: vcs.Health,
	}))

	if vcs.Health > 0 {
		return
	}

	vcs.Alive = false
	vcs.DiedAt = now
	vcs.RespawnAt = now.Add(g.cfg.RespawnDelay)
	vcs.Deaths++
	shooter.combat.Kills++
	if g.teamMode() && shooter.team != "" {
		g.teamScores[shooter.team]++
	}

	victim.send(makeEvent(EvCombatDeath, CombatDeathPayload{RespawnMs: g.cfg.RespawnDelay.Milliseconds()}))
	kill := CombatKillPayload{Killer: shooter.id, Victim: victim.id, Weapon: shooter.combat.Weapon}
	if g.teamMode() {
		kill.TeamScores = g.teamScores
	}
	g.room.broadcast(makeEvent(EvCombatKill, kill))
	g.room.log.Debug().Str("killer", shooter.id).Str("victim", victim.id).Msg("kill")

	if g.scoreLimitReached(shooter) {
		g.end()
	}
}

func (g *combatGame) scoreLimitReached(shooter *Player) bool {
	if g.cfg.ScoreLimit <= 0 {
		return false
	}
	if g.teamMode() {
		return g.teamScores[shooter.team] >= g.cfg.ScoreLimit
	}
	return shooter.combat.Kills >= g.cfg.ScoreLimit
}

func (g *combatGame) playerLeft(p *Player) {
	if g.done {
		return
	}
	if len(g.room.players) == 0 {
		g.done = true
	}
}

func (g *combatGame) snapshot(now time.Time) CombatStatePayload {
	players := make([]CombatPlayerState, 0, len(g.room.players))
	for _, p := range g.room.players {
		state := CombatPlayerState{
			Id:   p.id,
			Pos:  p.pos,
			Vel:  p.vel,
			RotY: p.rotY,
			Anim: p.anim,
			Team: p.team,
		}
		if cs := p.combat; cs != nil {
			state.Health = cs.Health
			state.Kills = cs.Kills
			state.Deaths = cs.Deaths
			state.Alive = cs.Alive
			state.Invincible = now.Before(cs.InvincibleUntil)
			state.Weapon = cs.Weapon
		}
		players = append(players, state)
	}
	payload := CombatStatePayload{
		Players:     players,
		RemainingMs: (g.cfg.TimeLimit - now.Sub(g.startedAt)).Milliseconds(),
	}
	if g.teamMode() {
		payload.TeamScores = g.teamScores
	}
	return payload
}

func (g *combatGame) scoreboard() []ScoreboardEntry {
	entries := make([]ScoreboardEntry, 0, len(g.room.players))
	for _, p := range g.room.players {
		entry := ScoreboardEntry{PlayerId: p.id, Nickname: p.nickname, Team: p.team}
		if p.combat != nil {
			entry.Kills = p.combat.Kills
			entry.Deaths = p.combat.Deaths
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kills != entries[j].Kills {
			return entries[i].Kills > entries[j].Kills
		}
		return entries[i].Deaths < entries[j].Deaths
	})
	return entries
}

func (g *combatGame) end() {
	if g.done {
		return
	}
	g.done = true

	results := CombatResultsPayload{Scoreboard: g.scoreboard()}
	if g.teamMode() {
		results.TeamScores = g.teamScores
		switch {
		case g.teamScores["red"] > g.teamScores["blue"]:
			results.Winner = "red"
		case g.teamScores["blue"] > g.teamScores["red"]:
			results.Winner = "blue"
		default:
			results.Winner = "draw"
		}
	}

	g.room.phase = PHASE_FINISHED
	g.room.broadcast(makeEvent(EvCombatResults, results))
	g.room.log.Info().Str("subMode", g.subMode).Msg("combat match over")

	g.room.recordMatch(MatchRecord{
		Mode:       MODE_SHOOTER,
		SubMode:    g.subMode,
		Scoreboard: results.Scoreboard,
	})
	g.room.updateDescription()
}
