package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- Lobby ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) RequestUpdateDescription(desc RoomDescription) {
	m.Called(desc)
}

func (m *MockLobby) RemoveRoom(roomId string) {
	m.Called(roomId)
}

// quietLobby swallows description updates so scenario tests don't have to
// expect every single one.
type quietLobby struct {
	removed []string
}

func (l *quietLobby) RequestUpdateDescription(desc RoomDescription) {}

func (l *quietLobby) RemoveRoom(roomId string) {
	l.removed = append(l.removed, roomId)
}

// --- MatchRecorder ---

type MockMatchRecorder struct {
	mock.Mock
}

func (m *MockMatchRecorder) RecordMatch(rec MatchRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

// --- Helpers ---

func newTestPlayer(nickname string) *Player {
	return NewPlayer("user-"+nickname, nickname)
}

// drainEvents empties the player's outbox and decodes every envelope.
func drainEvents(t *testing.T, p *Player) []ServerEnvelope {
	t.Helper()
	var envelopes []ServerEnvelope
	for {
		select {
		case data := <-p.outbox:
			var env ServerEnvelope
			require.NoError(t, json.Unmarshal(data, &env))
			envelopes = append(envelopes, env)
		default:
			return envelopes
		}
	}
}

// eventsOfType filters drained envelopes by type.
func eventsOfType(envelopes []ServerEnvelope, eventType string) []ServerEnvelope {
	var matched []ServerEnvelope
	for _, env := range envelopes {
		if env.Type == eventType {
			matched = append(matched, env)
		}
	}
	return matched
}

// decodeData re-marshals an envelope's data into the given payload struct.
func decodeData(t *testing.T, env ServerEnvelope, out any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func makeClientEnvelope(t *testing.T, from *Player, msgType string, data any) clientPacketEnvelope {
	t.Helper()
	env := ClientEnvelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	return clientPacketEnvelope{env: env, from: from}
}

func makeClientRequest(t *testing.T, from *Player, msgType string, data any, cid uint32) clientPacketEnvelope {
	t.Helper()
	envelope := makeClientEnvelope(t, from, msgType, data)
	envelope.env.Cid = &cid
	return envelope
}

// lastAck returns the most recent ack with the given cid.
func lastAck(t *testing.T, envelopes []ServerEnvelope, cid uint32) (ServerEnvelope, bool) {
	t.Helper()
	for i := len(envelopes) - 1; i >= 0; i-- {
		if envelopes[i].Type == EvAck && envelopes[i].Cid == cid {
			return envelopes[i], true
		}
	}
	return ServerEnvelope{}, false
}

func newTestRoom(t *testing.T, configs RoomConfigs, nicknames ...string) (*Room, []*Player, *quietLobby) {
	t.Helper()
	require.NotEmpty(t, nicknames)

	players := make([]*Player, 0, len(nicknames))
	host := newTestPlayer(nicknames[0])
	players = append(players, host)

	r := NewRoom(host, configs, zerolog.Nop())
	r.SetId("room-under-test")
	l := &quietLobby{}
	r.SetParentLobby(l)

	for _, nickname := range nicknames[1:] {
		p := newTestPlayer(nickname)
		r.handleJoinRequest(roomJoinRequest{player: p, errChan: make(chan error, 1)})
		players = append(players, p)
	}
	for _, p := range players {
		drainEvents(t, p)
	}
	return r, players, l
}

// startedBuildingRoom runs a relay room up to the building phase.
func startedBuildingRoom(t *testing.T, nicknames ...string) (*Room, []*Player, *quietLobby) {
	t.Helper()
	r, players, l := newTestRoom(t, RoomConfigs{Mode: MODE_RELAY, BuildTimeLimit: 300}, nicknames...)
	for _, p := range players[1:] {
		r.handleEnvelope(makeClientEnvelope(t, p, MsgRoomReady, ReadyPayload{Ready: true}))
	}
	r.handleEnvelope(makeClientEnvelope(t, players[0], MsgRoomStart, nil))
	require.Equal(t, PHASE_BUILDING, r.phase)
	require.NotNil(t, r.building)
	for _, p := range players {
		drainEvents(t, p)
	}
	return r, players, l
}

// placeSpawnAndFinish drops the two mandatory markers into a player's region.
func placeSpawnAndFinish(t *testing.T, r *Room, p *Player) {
	t.Helper()
	seg := r.building.segments[p.id]
	require.NotNil(t, seg)
	mid := (seg.minX + seg.maxX) / 2
	r.building.handle(makeClientEnvelope(t, p, MsgBuildMarkerPlace, MarkerPayload{
		Kind: MARKER_SPAWN, Pos: Vec3{X: mid, Y: 0, Z: -5},
	}))
	r.building.handle(makeClientEnvelope(t, p, MsgBuildMarkerPlace, MarkerPayload{
		Kind: MARKER_FINISH, Pos: Vec3{X: mid, Y: 0, Z: 5},
	}))
}

// verifySegment walks a player through a successful supervised test run.
func verifySegment(t *testing.T, r *Room, p *Player) {
	t.Helper()
	placeSpawnAndFinish(t, r, p)
	r.building.handle(makeClientEnvelope(t, p, MsgBuildTestStart, nil))
	r.building.handle(makeClientEnvelope(t, p, MsgBuildTestFinish, TestFinishPayload{Success: true}))
	require.True(t, r.building.segments[p.id].verified)
}
