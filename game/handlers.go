package game

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin filtering happens in the CORS middleware
		return true
	},
}

type GameHandler struct {
	lobby    *lobby
	recorder MatchRecorder
	log      zerolog.Logger
}

func NewGameHandler(l *lobby, recorder MatchRecorder, log zerolog.Logger) *GameHandler {
	return &GameHandler{lobby: l, recorder: recorder, log: log}
}

func parseRoomConfigs(ctx *gin.Context) (RoomConfigs, bool) {
	configs := RoomConfigs{
		Name:    ctx.Query("name"),
		Mode:    ctx.DefaultQuery("mode", MODE_RACE),
		SubMode: ctx.Query("subMode"),
		Private: ctx.Query("private") == "true",
	}
	switch configs.Mode {
	case MODE_RACE, MODE_RELAY, MODE_SHOOTER:
	default:
		return configs, false
	}
	if v := ctx.Query("maxPlayers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > len(playerColors) {
			return configs, false
		}
		configs.MaxPlayers = n
	}
	if v := ctx.Query("buildTimeLimit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return configs, false
		}
		configs.BuildTimeLimit = n
	}
	return configs, true
}

func (h *GameHandler) identity(ctx *gin.Context) (userId, nickname string, ok bool) {
	userId = ctx.GetString("id")
	if userId == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", "", false
	}
	nickname = ctx.Query("nickname")
	if nickname == "" {
		nickname = ctx.GetString("name")
	}
	if nickname == "" {
		nickname = "player"
	}
	return userId, nickname, true
}

func (h *GameHandler) CreateGameHandler(ctx *gin.Context) {
	userId, nickname, ok := h.identity(ctx)
	if !ok {
		return
	}
	configs, valid := parseRoomConfigs(ctx)
	if !valid {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-configs"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket := NewWebsocketConnection(conn)

	host := NewPlayer(userId, nickname)
	room := NewRoom(host, configs, h.log)
	room.SetMatchRecorder(h.recorder)
	h.lobby.RequestAddAndRunRoom(ctx.Request.Context(), room)

	go host.ReadPump(socket)
	go host.WritePump(socket)
}

func (h *GameHandler) JoinGameHandler(ctx *gin.Context) {
	userId, nickname, ok := h.identity(ctx)
	if !ok {
		return
	}
	roomId := ctx.Param("roomid")

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket := NewWebsocketConnection(conn)

	player := NewPlayer(userId, nickname)
	req := NewRoomJoinRequest(roomId, player)
	h.lobby.ForwardPlayerJoinRequestToRoom(ctx.Request.Context(), req)

	select {
	case err := <-req.errChan:
		if err != nil {
			socket.Close(err.Error())
			return
		}
	case <-time.After(5 * time.Second):
		socket.Close("timeout")
		return
	}

	go player.ReadPump(socket)
	go player.WritePump(socket)
}

func (h *GameHandler) GetPublicGamesHandler(ctx *gin.Context) {
	rooms := h.lobby.GetPublicGames(ctx.Request.Context())
	ctx.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
