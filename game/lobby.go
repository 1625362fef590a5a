package game

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// simulation tick fan-out; race/combat snapshots and the building
	// countdown all derive from this
	tickInterval = 50 * time.Millisecond
	pingInterval = 30 * time.Second
)

// lobby is the process-wide room registry. It owns the rooms map, the public
// room-browser listing, and the tick/ping fan-out; all of that state is
// confined to the LobbyActor goroutine.
type lobby struct {
	rooms                map[string]*Room
	pubRoomsDescriptions map[string]RoomDescription

	addRoomChan    chan *Room
	removeRoomChan chan string
	pubGamesReq    chan chan []RoomDescription
	roomDescUpdate chan RoomDescription
	joinRoomReq    chan roomJoinRequest

	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	log           zerolog.Logger
}

func NewLobby(idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator, log zerolog.Logger) *lobby {
	return &lobby{
		rooms:                map[string]*Room{},
		pubRoomsDescriptions: map[string]RoomDescription{},
		addRoomChan:          make(chan *Room, 32),
		removeRoomChan:       make(chan string, 32),
		pubGamesReq:          make(chan chan []RoomDescription, 256),
		roomDescUpdate:       make(chan RoomDescription, 256),
		joinRoomReq:          make(chan roomJoinRequest, 256),
		idGenerator:          idgen,
		tickerCreator:        tickerCreator,
		log:                  log,
	}
}

func (l *lobby) RequestUpdateDescription(desc RoomDescription) {
	select {
	case l.roomDescUpdate <- desc:
	default:
	}
}

func (l *lobby) RequestAddAndRunRoom(ctx context.Context, r *Room) {
	select {
	case l.addRoomChan <- r:
	case <-ctx.Done():
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	select {
	case l.joinRoomReq <- jreq:
	case <-ctx.Done():
	}
}

func (l *lobby) RemoveRoom(roomId string) {
	l.removeRoomChan <- roomId
}

func (l *lobby) GetPublicGames(ctx context.Context) []RoomDescription {
	respChan := make(chan []RoomDescription, 1)
	select {
	case l.pubGamesReq <- respChan:
		select {
		case resp := <-respChan:
			return resp
		case <-ctx.Done():
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

func (l *lobby) LobbyActor(started chan struct{}) {
	ticker := l.tickerCreator.Create(tickInterval)
	pingTicker := l.tickerCreator.Create(pingInterval)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case room := <-l.addRoomChan:
			l.handleAddAndRunRoom(room)

		case roomId := <-l.removeRoomChan:
			l.handleRemoveRoom(roomId)

		case desc := <-l.roomDescUpdate:
			if _, known := l.rooms[desc.Id]; !known {
				break
			}
			// a room flipped to private must leave the browser, not
			// linger with its last public description
			if desc.private {
				delete(l.pubRoomsDescriptions, desc.Id)
			} else {
				l.pubRoomsDescriptions[desc.Id] = desc
			}

		case pubGamesReq := <-l.pubGamesReq:
			l.handleGetPublicRoomsDescription(pubGamesReq)

		case joinReq := <-l.joinRoomReq:
			l.handleJoinReq(joinReq)
		}
	}
}

func (l *lobby) handleAddAndRunRoom(r *Room) {
	id := l.idGenerator.Generate()
	r.SetId(id)
	r.SetParentLobby(l)

	l.rooms[id] = r
	rDesc := r.Description()
	go r.GameLoop()
	l.log.Info().Str("room", id).Str("mode", rDesc.Mode).Msg("room created")
	if rDesc.private {
		return
	}
	l.pubRoomsDescriptions[id] = rDesc
}

func (l *lobby) handleRemoveRoom(toRemoveId string) {
	room, ok := l.rooms[toRemoveId]
	if !ok {
		return
	}
	delete(l.rooms, toRemoveId)
	delete(l.pubRoomsDescriptions, toRemoveId)
	room.CloseAndRelease()
	l.idGenerator.Dispose(toRemoveId)
	l.log.Info().Str("room", toRemoveId).Msg("room removed")
}

func (l *lobby) handleGetPublicRoomsDescription(req chan []RoomDescription) {
	descs := make([]RoomDescription, 0, len(l.pubRoomsDescriptions))
	for _, description := range l.pubRoomsDescriptions {
		descs = append(descs, description)
	}
	req <- descs
}

func (l *lobby) handleJoinReq(joinReq roomJoinRequest) {
	room, ok := l.rooms[joinReq.roomId]
	if !ok {
		joinReq.errChan <- ErrRoomNotFound
		return
	}
	room.RequestJoin(joinReq)
}
