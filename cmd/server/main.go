package main

import (
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/kimkichan1225/GameForge-sub000/auth"
	"github.com/kimkichan1225/GameForge-sub000/config"
	"github.com/kimkichan1225/GameForge-sub000/game"
	"github.com/kimkichan1225/GameForge-sub000/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	if len(allowedOrigins) == 0 {
		return r
	}

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	listenAddr := pflag.String("listen", "", "override listen address")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if cfg.Auth.JWTSecret == "" {
		if secret, exists := os.LookupEnv("JWT_KEY"); exists {
			cfg.Auth.JWTSecret = secret
		} else {
			logger.Fatal().Msg("missing jwt secret (config auth.jwt_secret or JWT_KEY)")
		}
	}

	var recorder game.MatchRecorder
	var historyStore *storage.Store
	if cfg.Database.Path != "" {
		historyStore, err = storage.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open match history store")
		}
		defer historyStore.Close()
		recorder = historyStore
	}

	tokenManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	r := CreateServer(cfg.Server.AllowedOrigins)

	if cfg.Auth.AllowGuests {
		r.GET("/auth/guest", func(ctx *gin.Context) {
			nickname := ctx.Query("nickname")
			if nickname == "" {
				nickname = "guest"
			}
			token, err := tokenManager.Generate(uuid.NewString(), nickname, time.Now())
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token-generation-failed"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	idGen := game.NewIdGen()
	tickerGen := game.NewTickerGen()

	lobby := game.NewLobby(&idGen, &tickerGen, logger)
	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	gameHandler := game.NewGameHandler(lobby, recorder, logger)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(auth.RequireAuth(tokenManager))

		gameGroup.GET("/create", gameHandler.CreateGameHandler)
		gameGroup.GET("/join/:roomid", gameHandler.JoinGameHandler)
		gameGroup.GET("/rooms", gameHandler.GetPublicGamesHandler)

		if historyStore != nil {
			gameGroup.GET("/history", func(ctx *gin.Context) {
				limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
				matches, err := historyStore.RecentMatches(limit)
				if err != nil {
					logger.Error().Err(err).Msg("failed to load match history")
					ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history-unavailable"})
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"matches": matches})
			})
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("game server listening")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
