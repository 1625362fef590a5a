package game

import (
	"crypto/rand"
	"math/big"
	"sync"
)

const roomIdAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
const roomIdLength = 6

// Idgen hands out short, unique, human-shareable room ids. Dispose must be
// called when a room is torn down so the id can be reused.
type Idgen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() Idgen {
	return Idgen{ids: make(map[string]struct{})}
}

func (g *Idgen) Generate() string {
	g.locker.Lock()
	defer g.locker.Unlock()

	for {
		id := randomRoomId()
		if _, taken := g.ids[id]; !taken {
			g.ids[id] = struct{}{}
			return id
		}
	}
}

func (g *Idgen) Dispose(id string) {
	g.locker.Lock()
	defer g.locker.Unlock()
	delete(g.ids, id)
}

func randomRoomId() string {
	buf := make([]byte, roomIdLength)
	max := big.NewInt(int64(len(roomIdAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		buf[i] = roomIdAlphabet[n.Int64()]
	}
	return string(buf)
}
