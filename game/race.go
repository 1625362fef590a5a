package game

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	raceCountdownSecs = 3
	gracePeriod       = 20 * time.Second
	coordLimit        = 1000.0
)

type raceGame struct {
	room   *Room
	course *RelayMapData // nil when racing a pre-built course

	countdown  int
	lastSecond time.Time
	startedAt  time.Time
	lastTick   time.Time

	graceActive    bool
	graceRemaining time.Duration
	done           bool
}

func newRaceGame(room *Room, course *RelayMapData) *raceGame {
	return &raceGame{room: room, course: course, countdown: raceCountdownSecs}
}

func (g *raceGame) begin(now time.Time) {
	g.lastSecond = now
	for _, p := range g.room.players {
		p.race = &RaceState{}
	}
	g.room.broadcast(makeEvent(EvCountdown, CountdownPayload{Seconds: g.countdown}))
}

func (g *raceGame) tick(now time.Time) {
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

	if g.graceActive {
		g.graceRemaining -= now.Sub(g.lastTick)
		if g.graceRemaining <= 0 {
			g.lastTick = now
			g.end()
			return
		}
	}
	g.lastTick = now

	g.room.broadcast(makeEvent(EvRaceState, g.snapshot()))
}

func (g *raceGame) start(now time.Time) {
	g.room.phase = PHASE_PLAYING
	g.startedAt = now
	g.lastTick = now
	for _, p := range g.room.players {
		p.race = &RaceState{}
	}
	g.room.broadcast(makeEvent(EvRaceStarted, RaceStartedPayload{Course: g.course}))
	g.room.log.Info().Msg("race started")
}

func (g *raceGame) handle(envelope clientPacketEnvelope, now time.Time) {
	switch envelope.env.Type {
	case MsgRacePos:
		g.handlePosition(envelope)
	case MsgRaceCheckpoint:
		g.handleCheckpoint(envelope)
	case MsgRaceFinish:
		g.handleFinish(envelope, now)
	case MsgRaceDeath:
		g.room.broadcast(makeEvent(EvRaceDeath, RaceDeathPayload{PlayerId: envelope.from.id}))
	}
}

// handlePosition trusts the client but sanitizes: non-finite samples are
// dropped whole, finite coordinates are clamped to the world bounds.
func (g *raceGame) handlePosition(envelope clientPacketEnvelope) {
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

func (g *raceGame) handleCheckpoint(envelope clientPacketEnvelope) {
	p := envelope.from
	if p.race == nil {
		return
	}
	var payload CheckpointPayload
	if envelope.env.Data != nil {
		if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
			return
		}
	}

	p.race.Checkpoints++

	ack := CheckpointAck{Checkpoints: p.race.Checkpoints}
	if g.course != nil && payload.RelayBoundary {
		// crossing a relay boundary moves the runner to the next
		// segment's spawn; the client applies the teleport locally
		next := p.race.Checkpoints
		if next < len(g.course.Segments) {
			spawn := g.course.Segments[next].Spawn
			ack.Teleport = &spawn
		}
	}

	g.room.ack(envelope, ack)
	g.room.broadcast(makeEvent(EvRaceCheckpoint, RaceCheckpointPayload{
		PlayerId:    p.id,
		Checkpoints: p.race.Checkpoints,
	}))
}

func (g *raceGame) handleFinish(envelope clientPacketEnvelope, now time.Time) {
	p := envelope.from
	if p.race == nil {
		return
	}
	if p.race.Finished {
		g.room.nack(envelope, ErrAlreadyFinished)
		return
	}

	first := g.finishedCount() == 0

	p.race.Finished = true
	p.race.FinishedAt = now

	timeMs := now.Sub(g.startedAt).Milliseconds()
	rank := g.finishedCount()
	g.room.ack(envelope, RaceFinishedPayload{PlayerId: p.id, Rank: rank, TimeMs: timeMs})
	g.room.broadcast(makeEvent(EvRaceFinished, RaceFinishedPayload{PlayerId: p.id, Rank: rank, TimeMs: timeMs}))

	if first {
		g.graceActive = true
		g.graceRemaining = gracePeriod
		g.room.broadcast(makeEvent(EvRaceGrace, RaceGracePayload{Ms: gracePeriod.Milliseconds()}))
	}

	if g.allFinished() {
		g.end()
	}
}

func (g *raceGame) playerLeft(p *Player) {
	if g.done || g.room.phase != PHASE_PLAYING {
		return
	}
	if len(g.room.players) > 0 && g.allFinished() {
		g.end()
	}
}

func (g *raceGame) finishedCount() int {
	count := 0
	for _, p := range g.room.players {
		if p.race != nil && p.race.Finished {
			count++
		}
	}
	return count
}

func (g *raceGame) allFinished() bool {
	for _, p := range g.room.players {
		if p.race == nil || !p.race.Finished {
			return false
		}
	}
	return len(g.room.players) > 0
}

// ranking lists finishers by ascending elapsed time; when includeDnf is set,
// every unfinished player is appended with the shared rank one past the last
// finisher.
func (g *raceGame) ranking(includeDnf bool) []RankingEntry {
	finishers := make([]*Player, 0, len(g.room.players))
	var unfinished []*Player
	for _, p := range g.room.players {
		if p.race == nil {
			continue
		}
		if p.race.Finished {
			finishers = append(finishers, p)
		} else {
			unfinished = append(unfinished, p)
		}
	}
	sort.Slice(finishers, func(i, j int) bool {
		return finishers[i].race.FinishedAt.Before(finishers[j].race.FinishedAt)
	})

	entries := make([]RankingEntry, 0, len(finishers)+len(unfinished))
	for i, p := range finishers {
		entries = append(entries, RankingEntry{
			Rank:     i + 1,
			PlayerId: p.id,
			Nickname: p.nickname,
			TimeMs:   p.race.FinishedAt.Sub(g.startedAt).Milliseconds(),
		})
	}
	if includeDnf {
		dnfRank := len(finishers) + 1
		for _, p := range unfinished {
			entries = append(entries, RankingEntry{
				Rank:     dnfRank,
				PlayerId: p.id,
				Nickname: p.nickname,
				Dnf:      true,
			})
		}
	}
	return entries
}

func (g *raceGame) snapshot() RaceStatePayload {
	players := make([]RacePlayerState, 0, len(g.room.players))
	for _, p := range g.room.players {
		state := RacePlayerState{
			Id:   p.id,
			Pos:  p.pos,
			Vel:  p.vel,
			RotY: p.rotY,
			Anim: p.anim,
		}
		if p.race != nil {
			state.Checkpoints = p.race.Checkpoints
			state.Finished = p.race.Finished
		}
		players = append(players, state)
	}
	return RaceStatePayload{Players: players, Ranking: g.ranking(false)}
}

func (g *raceGame) end() {
	if g.done {
		return
	}
	g.done = true

	for _, p := range g.room.players {
		if p.race != nil && !p.race.Finished {
			p.race.Dnf = true
		}
	}
	final := g.ranking(true)

	g.room.phase = PHASE_FINISHED
	g.room.broadcast(makeEvent(EvRaceResults, RaceResultsPayload{Ranking: final}))
	g.room.log.Info().Int("finishers", g.finishedCount()).Msg("race over")

	g.room.recordMatch(MatchRecord{Mode: g.room.configs.Mode, Ranking: final})
	g.room.updateDescription()
}
