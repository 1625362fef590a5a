package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RaceState holds the race-only transient fields; allocated when a race
// starts, nil otherwise.
type RaceState struct {
	Checkpoints int
	Finished    bool
	FinishedAt  time.Time
	Dnf         bool
}

// CombatState holds the combat-only transient fields; allocated when a combat
// match starts, nil otherwise.
type CombatState struct {
	Health          int
	Kills           int
	Deaths          int
	Alive           bool
	Weapon          string
	DiedAt          time.Time
	RespawnAt       time.Time
	InvincibleUntil time.Time
	LastShot        time.Time
}

// Player is one roster entry. The id is a stable arena id assigned at join
// time, deliberately distinct from the transport-level user identity so vote
// records survive a reconnect.
type Player struct {
	id       string
	userId   string
	nickname string
	host     bool
	ready    bool
	team     string
	color    string

	pos  Vec3
	vel  Vec3
	rotY float64
	anim string

	race   *RaceState
	combat *CombatState

	limiter  *rate.Limiter
	outbox   chan []byte
	pingChan chan struct{}

	roomChan chan<- clientPacketEnvelope
	removeMe chan<- *Player

	ctx       context.Context
	cancelCtx context.CancelFunc
	closeOnce sync.Once
}

func NewPlayer(userId, nickname string) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		id:       uuid.NewString(),
		userId:   userId,
		nickname: nickname,
		// clients report position at a fixed 20 Hz cadence; leave slack
		// for the occasional request burst on top of that
		limiter:   rate.NewLimiter(40, 80),
		outbox:    make(chan []byte, 256),
		pingChan:  make(chan struct{}, 1),
		ctx:       ctx,
		cancelCtx: cancel,
	}
}

func (p *Player) Id() string       { return p.id }
func (p *Player) Nickname() string { return p.nickname }

func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		Id:       p.id,
		Nickname: p.nickname,
		Host:     p.host,
		Ready:    p.ready,
		Team:     p.team,
		Color:    p.color,
	}
}

// send queues data for the write pump. A slow consumer loses packets instead
// of blocking the room actor.
func (p *Player) send(data []byte) {
	select {
	case p.outbox <- data:
	default:
	}
}

func (p *Player) Ping() {
	select {
	case p.pingChan <- struct{}{}:
	default:
	}
}

func (p *Player) CancelAndRelease() {
	p.closeOnce.Do(p.cancelCtx)
}

// ReadPump forwards inbound envelopes to the owning room until the socket
// errors or the player is released. Over-rate and malformed messages are
// dropped without a correction signal.
func (p *Player) ReadPump(socket NetworkSession) {
	defer socket.Close("")

	for {
		data, err := socket.Read()
		if err != nil {
			break
		}
		if p.ctx.Err() != nil {
			return
		}
		if !p.limiter.Allow() {
			continue
		}

		var env ClientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		select {
		case p.roomChan <- clientPacketEnvelope{env: env, from: p}:
		case <-p.ctx.Done():
			return
		}
	}

	select {
	case p.removeMe <- p:
	case <-p.ctx.Done():
	}
}

// WritePump drains the outbox into the socket until the player is released or
// the socket errors. On release the remaining outbox is flushed first; the
// room queues its final acks before cancelling, and those must still go out.
func (p *Player) WritePump(socket NetworkSession) {
	for {
		select {
		case data := <-p.outbox:
			if err := socket.Write(data); err != nil {
				return
			}
		case <-p.pingChan:
			if err := socket.Ping(); err != nil {
				return
			}
		case <-p.ctx.Done():
			for {
				select {
				case data := <-p.outbox:
					if err := socket.Write(data); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
