package game

import "encoding/json"

// Wire format: one JSON envelope per websocket message. A client message
// carrying a cid is a request and gets exactly one ack with the same cid;
// without a cid it is fire-and-forget. Server pushes carry no cid.

type ClientEnvelope struct {
	Type string          `json:"type"`
	Cid  *uint32         `json:"cid,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerEnvelope struct {
	Type    string `json:"type"`
	Cid     uint32 `json:"cid,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type clientPacketEnvelope struct {
	env  ClientEnvelope
	from *Player
}

// Client → server message types.
const (
	MsgRoomReady    = "room.ready"
	MsgRoomSettings = "room.settings"
	MsgRoomStart    = "room.start"
	MsgRoomLeave    = "room.leave"
	MsgRoomReset    = "room.reset"

	MsgBuildState        = "build.state"
	MsgBuildObjectPlace  = "build.object.place"
	MsgBuildObjectRemove = "build.object.remove"
	MsgBuildObjectUpdate = "build.object.update"
	MsgBuildMarkerPlace  = "build.marker.place"
	MsgBuildMarkerRemove = "build.marker.remove"
	MsgBuildMarkerUpdate = "build.marker.update"
	MsgBuildTestStart    = "build.test.start"
	MsgBuildTestFinish   = "build.test.finish"
	MsgBuildVoteKick     = "build.vote.kick"

	MsgRacePos        = "race.pos"
	MsgRaceCheckpoint = "race.checkpoint"
	MsgRaceFinish     = "race.finish"
	MsgRaceDeath      = "race.death"

	MsgCombatPos    = "combat.pos"
	MsgCombatShoot  = "combat.shoot"
	MsgCombatWeapon = "combat.weapon"
)

// Server → client event types.
const (
	EvAck       = "ack"
	EvRoster    = "room.roster"
	EvSettings  = "room.settings"
	EvCountdown = "countdown"

	EvBuildStarted   = "build.started"
	EvBuildTime      = "build.time"
	EvBuildExtended  = "build.extended"
	EvBuildObject    = "build.object"
	EvBuildMarker    = "build.marker"
	EvBuildTesting   = "build.testing"
	EvBuildVerified  = "build.verified"
	EvBuildVotes     = "build.votes"
	EvBuildKicked    = "build.kicked"
	EvBuildCompleted = "build.completed"

	EvRaceStarted    = "race.started"
	EvRaceState      = "race.state"
	EvRaceCheckpoint = "race.checkpoint"
	EvRaceFinished   = "race.finished"
	EvRaceDeath      = "race.death"
	EvRaceGrace      = "race.grace"
	EvRaceResults    = "race.results"

	EvCombatStarted = "combat.started"
	EvCombatState   = "combat.state"
	EvCombatShot    = "combat.shot"
	EvCombatDamage  = "combat.damage"
	EvCombatKill    = "combat.kill"
	EvCombatDeath   = "combat.death"
	EvCombatRespawn = "combat.respawn"
	EvCombatResults = "combat.results"
)

func makeEvent(eventType string, data any) []byte {
	bytes, err := json.Marshal(ServerEnvelope{Type: eventType, Data: data})
	if err != nil {
		// payload structs are ours; marshaling them cannot fail
		panic(err)
	}
	return bytes
}

func makeAck(cid uint32, data any) []byte {
	ok := true
	bytes, err := json.Marshal(ServerEnvelope{Type: EvAck, Cid: cid, Success: &ok, Data: data})
	if err != nil {
		panic(err)
	}
	return bytes
}

func makeAckError(cid uint32, reason error) []byte {
	ok := false
	bytes, err := json.Marshal(ServerEnvelope{Type: EvAck, Cid: cid, Success: &ok, Error: reason.Error()})
	if err != nil {
		panic(err)
	}
	return bytes
}

// --- Inbound payloads ---

type ReadyPayload struct {
	Ready bool `json:"ready"`
}

type SettingsPayload struct {
	Name           string `json:"name"`
	MaxPlayers     int    `json:"maxPlayers"`
	Private        *bool  `json:"private,omitempty"`
	SubMode        string `json:"subMode,omitempty"`
	BuildTimeLimit *int   `json:"buildTimeLimit,omitempty"`
}

type PositionPayload struct {
	Pos  Vec3    `json:"pos"`
	Vel  Vec3    `json:"vel"`
	RotY float64 `json:"rotY"`
	Anim string  `json:"anim"`
}

type ObjectPayload struct {
	Id    string `json:"id"`
	Kind  string `json:"kind"`
	Pos   Vec3   `json:"pos"`
	Rot   Vec3   `json:"rot"`
	Scale Vec3   `json:"scale"`
}

type MarkerPayload struct {
	Id   string  `json:"id"`
	Kind string  `json:"kind"`
	Pos  Vec3    `json:"pos"`
	RotY float64 `json:"rotY"`
}

type RemovePayload struct {
	Id string `json:"id"`
}

type TestFinishPayload struct {
	Success bool `json:"success"`
}

type VoteKickPayload struct {
	Target string `json:"target"`
}

type CheckpointPayload struct {
	RelayBoundary bool `json:"relayBoundary"`
}

type WeaponPayload struct {
	Weapon string `json:"weapon"`
}

type ShootPayload struct {
	Origin Vec3 `json:"origin"`
	Dir    Vec3 `json:"dir"`
}

// --- Outbound payloads ---

type PlayerInfo struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
	Host     bool   `json:"host"`
	Ready    bool   `json:"ready"`
	Team     string `json:"team,omitempty"`
	Color    string `json:"color,omitempty"`
}

type RoomInfo struct {
	Id             string       `json:"id"`
	Name           string       `json:"name"`
	Mode           string       `json:"mode"`
	SubMode        string       `json:"subMode,omitempty"`
	Phase          string       `json:"phase"`
	MaxPlayers     int          `json:"maxPlayers"`
	BuildTimeLimit int          `json:"buildTimeLimit,omitempty"`
	Players        []PlayerInfo `json:"players"`
}

type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

type RegionInfo struct {
	PlayerId string  `json:"playerId"`
	MinX     float64 `json:"minX"`
	MaxX     float64 `json:"maxX"`
}

type BuildStartedPayload struct {
	TimeLimit int          `json:"timeLimit"`
	ZRange    float64      `json:"zRange"`
	Regions   []RegionInfo `json:"regions"`
}

type BuildTimePayload struct {
	Remaining int `json:"remaining"`
}

type BuildExtendedPayload struct {
	Added      int      `json:"added"`
	Remaining  int      `json:"remaining"`
	Unverified []string `json:"unverified"`
}

type BuildObjectPayload struct {
	PlayerId string       `json:"playerId"`
	Action   string       `json:"action"`
	Object   *BuildObject `json:"object,omitempty"`
	Id       string       `json:"id,omitempty"`
}

type BuildMarkerPayload struct {
	PlayerId string       `json:"playerId"`
	Action   string       `json:"action"`
	Marker   *BuildMarker `json:"marker,omitempty"`
	Id       string       `json:"id,omitempty"`
}

type BuildTestingPayload struct {
	PlayerId string `json:"playerId"`
}

type BuildVerifiedPayload struct {
	PlayerId    string `json:"playerId"`
	AllVerified bool   `json:"allVerified"`
}

type BuildVotesPayload struct {
	Target string `json:"target"`
	Votes  int    `json:"votes"`
	Needed int    `json:"needed"`
}

type BuildKickedPayload struct {
	PlayerId string `json:"playerId"`
}

type BuildCompletedPayload struct {
	Order  []string     `json:"order"`
	Course RelayMapData `json:"course"`
}

type BuildStatePayload struct {
	Region    RegionInfo     `json:"region"`
	Objects   []*BuildObject `json:"objects"`
	Markers   []*BuildMarker `json:"markers"`
	Verified  bool           `json:"verified"`
	Testing   bool           `json:"testing"`
	Remaining int            `json:"remaining"`
}

type RaceStartedPayload struct {
	Course *RelayMapData `json:"course,omitempty"`
}

type RacePlayerState struct {
	Id          string  `json:"id"`
	Pos         Vec3    `json:"pos"`
	Vel         Vec3    `json:"vel"`
	RotY        float64 `json:"rotY"`
	Anim        string  `json:"anim,omitempty"`
	Checkpoints int     `json:"checkpoints"`
	Finished    bool    `json:"finished"`
}

type RankingEntry struct {
	Rank     int    `json:"rank"`
	PlayerId string `json:"playerId"`
	Nickname string `json:"nickname"`
	TimeMs   int64  `json:"timeMs,omitempty"`
	Dnf      bool   `json:"dnf,omitempty"`
}

type RaceStatePayload struct {
	Players []RacePlayerState `json:"players"`
	Ranking []RankingEntry    `json:"ranking"`
}

type CheckpointAck struct {
	Checkpoints int   `json:"checkpoints"`
	Teleport    *Vec3 `json:"teleport,omitempty"`
}

type RaceCheckpointPayload struct {
	PlayerId    string `json:"playerId"`
	Checkpoints int    `json:"checkpoints"`
}

type RaceFinishedPayload struct {
	PlayerId string `json:"playerId"`
	Rank     int    `json:"rank"`
	TimeMs   int64  `json:"timeMs"`
}

type RaceDeathPayload struct {
	PlayerId string `json:"playerId"`
}

type RaceGracePayload struct {
	Ms int64 `json:"ms"`
}

type RaceResultsPayload struct {
	Ranking []RankingEntry `json:"ranking"`
}

type CombatStartedPayload struct {
	SubMode    string `json:"subMode"`
	TimeLimit  int    `json:"timeLimit"`
	ScoreLimit int    `json:"scoreLimit"`
}

type CombatPlayerState struct {
	Id         string  `json:"id"`
	Pos        Vec3    `json:"pos"`
	Vel        Vec3    `json:"vel"`
	RotY       float64 `json:"rotY"`
	Anim       string  `json:"anim,omitempty"`
	Team       string  `json:"team,omitempty"`
	Health     int     `json:"health"`
	Kills      int     `json:"kills"`
	Deaths     int     `json:"deaths"`
	Alive      bool    `json:"alive"`
	Invincible bool    `json:"invincible"`
	Weapon     string  `json:"weapon"`
}

type CombatStatePayload struct {
	Players     []CombatPlayerState `json:"players"`
	TeamScores  map[string]int      `json:"teamScores,omitempty"`
	RemainingMs int64               `json:"remainingMs"`
}

type CombatShotPayload struct {
	Hits int `json:"hits"`
}

type CombatDamagePayload struct {
	From   string `json:"from"`
	Damage int    `json:"damage"`
	Dir    Vec3   `json:"dir"`
	Health int    `json:"health"`
}

type CombatKillPayload struct {
	Killer     string         `json:"killer"`
	Victim     string         `json:"victim"`
	Weapon     string         `json:"weapon"`
	TeamScores map[string]int `json:"teamScores,omitempty"`
}

type CombatDeathPayload struct {
	RespawnMs int64 `json:"respawnMs"`
}

type CombatRespawnPayload struct {
	PlayerId     string `json:"playerId"`
	Pos          Vec3   `json:"pos"`
	InvincibleMs int64  `json:"invincibleMs"`
}

type ScoreboardEntry struct {
	PlayerId string `json:"playerId"`
	Nickname string `json:"nickname"`
	Team     string `json:"team,omitempty"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

type CombatResultsPayload struct {
	Scoreboard []ScoreboardEntry `json:"scoreboard"`
	TeamScores map[string]int    `json:"teamScores,omitempty"`
	Winner     string            `json:"winner,omitempty"`
}
