package game

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

type RoomPhase int

const (
	PHASE_WAITING RoomPhase = iota
	PHASE_BUILDING
	PHASE_COUNTDOWN
	PHASE_PLAYING
	PHASE_FINISHED
)

func (ph RoomPhase) String() string {
	switch ph {
	case PHASE_WAITING:
		return "waiting"
	case PHASE_BUILDING:
		return "building"
	case PHASE_COUNTDOWN:
		return "countdown"
	case PHASE_PLAYING:
		return "playing"
	case PHASE_FINISHED:
		return "finished"
	}
	return "unknown"
}

const (
	MODE_RACE    = "race"
	MODE_RELAY   = "relay"
	MODE_SHOOTER = "shooter"
)

const (
	SUBMODE_FFA        = "ffa"
	SUBMODE_TEAM       = "team"
	SUBMODE_DOMINATION = "domination"
)

var playerColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "cyan", "pink"}

type RoomConfigs struct {
	Name           string `json:"name"`
	MaxPlayers     int    `json:"maxPlayers"`
	Mode           string `json:"mode"`
	SubMode        string `json:"subMode"`
	BuildTimeLimit int    `json:"buildTimeLimit"` // seconds; <= 0 means unlimited
	Private        bool   `json:"private"`
}

type roomJoinRequest struct {
	roomId  string
	player  *Player
	errChan chan error
}

func NewRoomJoinRequest(roomId string, player *Player) roomJoinRequest {
	return roomJoinRequest{roomId: roomId, player: player, errChan: make(chan error, 1)}
}

type RoomDescription struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	PlayersCount int    `json:"playersCount"`
	MaxPlayers   int    `json:"maxPlayers"`
	Started      bool   `json:"started"`
	private      bool
}

// Room is one match instance. All of its state is confined to the GameLoop
// goroutine; the exported methods only push onto channels.
type Room struct {
	id      string
	configs RoomConfigs
	phase   RoomPhase
	hostId  string
	players []*Player

	building *buildingPhase
	race     *raceGame
	combat   *combatGame

	// combat spawn points keyed by team name; "" is the generic list
	spawnPoints map[string][]Vec3

	parentLobby Lobby
	recorder    MatchRecorder
	log         zerolog.Logger
	rng         *rand.Rand

	inbox            chan clientPacketEnvelope
	joinReqs         chan roomJoinRequest
	removePlayerReqs chan *Player
	ticks            chan time.Time
	pingPlayers      chan struct{}
	done             chan struct{}
}

func NewRoom(host *Player, configs RoomConfigs, log zerolog.Logger) *Room {
	if configs.MaxPlayers <= 0 {
		configs.MaxPlayers = 8
	}
	if configs.Mode == "" {
		configs.Mode = MODE_RACE
	}
	if configs.Mode == MODE_SHOOTER && configs.SubMode == "" {
		configs.SubMode = SUBMODE_FFA
	}

	r := &Room{
		configs:          configs,
		phase:            PHASE_WAITING,
		players:          make([]*Player, 0, configs.MaxPlayers),
		spawnPoints:      make(map[string][]Vec3),
		log:              log,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		inbox:            make(chan clientPacketEnvelope, 1024),
		joinReqs:         make(chan roomJoinRequest, 16),
		removePlayerReqs: make(chan *Player, 64),
		ticks:            make(chan time.Time, 24),
		pingPlayers:      make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
	r.attach(host)
	host.host = true
	r.hostId = host.id
	return r
}

func (r *Room) SetId(id string) {
	r.id = id
	r.log = r.log.With().Str("room", id).Logger()
}

func (r *Room) SetParentLobby(l Lobby)           { r.parentLobby = l }
func (r *Room) SetMatchRecorder(m MatchRecorder) { r.recorder = m }

// SetSpawnPoints configures combat spawns. Only meaningful before start.
func (r *Room) SetSpawnPoints(team string, points []Vec3) {
	r.spawnPoints[team] = points
}

func (r *Room) Description() RoomDescription {
	return RoomDescription{
		Id:           r.id,
		Name:         r.configs.Name,
		Mode:         r.configs.Mode,
		PlayersCount: len(r.players),
		MaxPlayers:   r.configs.MaxPlayers,
		Started:      r.phase != PHASE_WAITING,
		private:      r.configs.Private,
	}
}

func (r *Room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *Room) PingPlayers() {
	select {
	case r.pingPlayers <- struct{}{}:
	default:
	}
}

func (r *Room) RequestJoin(req roomJoinRequest) {
	select {
	case r.joinReqs <- req:
	case <-r.done:
		req.errChan <- ErrRoomNotFound
	}
}

func (r *Room) CloseAndRelease() {
	close(r.done)
}

// GameLoop is the room actor. Everything that mutates room state runs here.
func (r *Room) GameLoop() {
	defer func() {
		for _, p := range r.players {
			p.CancelAndRelease()
		}
	}()

	// the lobby has assigned the id by now; tell the creator about it
	r.broadcastRoster()

	for {
		select {
		case envelope := <-r.inbox:
			r.handleEnvelope(envelope)
		case req := <-r.joinReqs:
			r.handleJoinRequest(req)
		case p := <-r.removePlayerReqs:
			r.handleRemovePlayer(p)
		case now := <-r.ticks:
			r.handleTick(now)
		case <-r.pingPlayers:
			for _, p := range r.players {
				p.Ping()
			}
		case <-r.done:
			return
		}
	}
}

func (r *Room) handleTick(now time.Time) {
	switch {
	case r.building != nil && r.phase == PHASE_BUILDING:
		r.building.tick(now)
	case r.race != nil && (r.phase == PHASE_COUNTDOWN || r.phase == PHASE_PLAYING):
		r.race.tick(now)
	case r.combat != nil && (r.phase == PHASE_COUNTDOWN || r.phase == PHASE_PLAYING):
		r.combat.tick(now)
	}
}

func (r *Room) handleEnvelope(envelope clientPacketEnvelope) {
	switch envelope.env.Type {
	case MsgRoomReady:
		r.handleReady(envelope)
	case MsgRoomSettings:
		r.handleSettings(envelope)
	case MsgRoomStart:
		r.handleStart(envelope)
	case MsgRoomLeave:
		r.ack(envelope, nil)
		r.handleRemovePlayer(envelope.from)
	case MsgRoomReset:
		r.handleReset(envelope)

	case MsgBuildState, MsgBuildObjectPlace, MsgBuildObjectRemove, MsgBuildObjectUpdate,
		MsgBuildMarkerPlace, MsgBuildMarkerRemove, MsgBuildMarkerUpdate,
		MsgBuildTestStart, MsgBuildTestFinish, MsgBuildVoteKick:
		if r.building == nil || r.phase != PHASE_BUILDING {
			r.nack(envelope, ErrWrongPhase)
			return
		}
		r.building.handle(envelope)

	case MsgRacePos, MsgRaceCheckpoint, MsgRaceFinish, MsgRaceDeath:
		if r.race == nil || r.phase != PHASE_PLAYING {
			r.nack(envelope, ErrWrongPhase)
			return
		}
		r.race.handle(envelope, time.Now())

	case MsgCombatPos, MsgCombatShoot, MsgCombatWeapon:
		if r.combat == nil || r.phase != PHASE_PLAYING {
			r.nack(envelope, ErrWrongPhase)
			return
		}
		r.combat.handle(envelope, time.Now())
	}
}

func (r *Room) handleJoinRequest(req roomJoinRequest) {
	if len(r.players) >= r.configs.MaxPlayers {
		req.errChan <- ErrRoomFull
		return
	}
	if r.phase != PHASE_WAITING {
		req.errChan <- ErrRoomStarted
		return
	}

	r.attach(req.player)
	req.errChan <- nil

	r.log.Info().Str("player", req.player.id).Str("nickname", req.player.nickname).Msg("player joined")
	r.broadcastRoster()
	r.updateDescription()
}

func (r *Room) attach(p *Player) {
	p.roomChan = r.inbox
	p.removeMe = r.removePlayerReqs
	p.color = r.pickColor()
	r.players = append(r.players, p)
}

func (r *Room) pickColor() string {
	for _, c := range playerColors {
		taken := false
		for _, p := range r.players {
			if p.color == c {
				taken = true
				break
			}
		}
		if !taken {
			return c
		}
	}
	return ""
}

func (r *Room) handleRemovePlayer(p *Player) {
	idx := -1
	for i, other := range r.players {
		if other == p {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	p.CancelAndRelease()

	r.log.Info().Str("player", p.id).Msg("player removed")

	if r.building != nil && r.phase == PHASE_BUILDING {
		r.building.playerLeft(p)
	}
	if r.race != nil {
		r.race.playerLeft(p)
	}
	if r.combat != nil {
		r.combat.playerLeft(p)
	}

	if len(r.players) == 0 {
		if r.parentLobby != nil {
			r.parentLobby.RemoveRoom(r.id)
		}
		return
	}

	if p.id == r.hostId {
		next := r.players[0]
		next.host = true
		r.hostId = next.id
	}

	r.broadcastRoster()
	r.updateDescription()
}

func (r *Room) handleReady(envelope clientPacketEnvelope) {
	var payload ReadyPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	envelope.from.ready = payload.Ready
	r.ack(envelope, nil)
	r.broadcastRoster()
}

func (r *Room) handleSettings(envelope clientPacketEnvelope) {
	if envelope.from.id != r.hostId {
		r.nack(envelope, ErrNotHost)
		return
	}
	if r.phase != PHASE_WAITING {
		r.nack(envelope, ErrWrongPhase)
		return
	}
	var payload SettingsPayload
	if err := json.Unmarshal(envelope.env.Data, &payload); err != nil {
		return
	}
	if payload.Name != "" {
		r.configs.Name = payload.Name
	}
	if payload.MaxPlayers >= len(r.players) && payload.MaxPlayers > 0 {
		r.configs.MaxPlayers = payload.MaxPlayers
	}
	if payload.Private != nil {
		r.configs.Private = *payload.Private
	}
	if payload.SubMode != "" {
		r.configs.SubMode = payload.SubMode
	}
	if payload.BuildTimeLimit != nil {
		r.configs.BuildTimeLimit = *payload.BuildTimeLimit
	}
	r.ack(envelope, nil)
	r.broadcast(makeEvent(EvSettings, r.info()))
	r.updateDescription()
}

func (r *Room) canStart() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.host && !p.ready {
			return false
		}
	}
	return true
}

func (r *Room) handleStart(envelope clientPacketEnvelope) {
	if envelope.from.id != r.hostId {
		r.nack(envelope, ErrNotHost)
		return
	}
	if r.phase != PHASE_WAITING {
		r.nack(envelope, ErrWrongPhase)
		return
	}
	if !r.canStart() {
		r.nack(envelope, ErrNotReady)
		return
	}

	switch r.configs.Mode {
	case MODE_RELAY:
		r.startBuilding()
	case MODE_SHOOTER:
		r.startCombat()
	default:
		r.startRace(nil)
	}

	r.ack(envelope, nil)
	r.updateDescription()
}

func (r *Room) startBuilding() {
	r.phase = PHASE_BUILDING
	r.building = newBuildingPhase(r, r.configs.BuildTimeLimit)
	r.building.onComplete = func(course *RelayMapData) {
		r.building = nil
		r.startRace(course)
	}
	r.building.begin(time.Now())
	r.log.Info().Int("timeLimit", r.configs.BuildTimeLimit).Msg("building phase started")
}

func (r *Room) startRace(course *RelayMapData) {
	r.phase = PHASE_COUNTDOWN
	r.race = newRaceGame(r, course)
	r.race.begin(time.Now())
	r.log.Info().Bool("relay", course != nil).Msg("race starting")
}

func (r *Room) startCombat() {
	r.phase = PHASE_COUNTDOWN
	r.combat = newCombatGame(r, r.configs.SubMode, defaultCombatConfig(r.configs.SubMode))
	r.combat.begin(time.Now())
	r.log.Info().Str("subMode", r.configs.SubMode).Msg("combat starting")
}

func (r *Room) handleReset(envelope clientPacketEnvelope) {
	if envelope.from.id != r.hostId {
		r.nack(envelope, ErrNotHost)
		return
	}
	if r.phase != PHASE_FINISHED {
		r.nack(envelope, ErrWrongPhase)
		return
	}

	r.race = nil
	r.combat = nil
	for _, p := range r.players {
		p.ready = false
		p.race = nil
		p.combat = nil
	}
	r.phase = PHASE_WAITING

	r.ack(envelope, nil)
	r.broadcastRoster()
	r.updateDescription()
}

func (r *Room) info() RoomInfo {
	players := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p.info())
	}
	return RoomInfo{
		Id:             r.id,
		Name:           r.configs.Name,
		Mode:           r.configs.Mode,
		SubMode:        r.configs.SubMode,
		Phase:          r.phase.String(),
		MaxPlayers:     r.configs.MaxPlayers,
		BuildTimeLimit: r.configs.BuildTimeLimit,
		Players:        players,
	}
}

func (r *Room) broadcast(data []byte) {
	for _, p := range r.players {
		p.send(data)
	}
}

func (r *Room) broadcastRoster() {
	r.broadcast(makeEvent(EvRoster, r.info()))
}

func (r *Room) updateDescription() {
	if r.parentLobby != nil {
		r.parentLobby.RequestUpdateDescription(r.Description())
	}
}

func (r *Room) recordMatch(rec MatchRecord) {
	if r.recorder == nil {
		return
	}
	rec.RoomId = r.id
	rec.RoomName = r.configs.Name
	rec.FinishedAt = time.Now()
	if err := r.recorder.RecordMatch(rec); err != nil {
		r.log.Error().Err(err).Msg("failed to record match result")
	}
}

func (r *Room) ack(envelope clientPacketEnvelope, data any) {
	if envelope.env.Cid == nil {
		return
	}
	envelope.from.send(makeAck(*envelope.env.Cid, data))
}

func (r *Room) nack(envelope clientPacketEnvelope, reason error) {
	if envelope.env.Cid == nil {
		return
	}
	envelope.from.send(makeAckError(*envelope.env.Cid, reason))
}
