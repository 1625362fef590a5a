package game

import "time"

// NetworkSession is the transport seam. The production implementation wraps a
// gorilla websocket; tests substitute a mock.
type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

// Lobby is the room's view of its parent registry.
type Lobby interface {
	RequestUpdateDescription(desc RoomDescription)
	RemoveRoom(roomId string)
}

// MatchRecorder receives final standings of finished matches. Implemented by
// the storage package; failures are logged by the room, never fatal.
type MatchRecorder interface {
	RecordMatch(rec MatchRecord) error
}

// MatchRecord is the persistence shape of one finished match.
type MatchRecord struct {
	RoomId     string    `json:"roomId"`
	RoomName   string    `json:"roomName"`
	Mode       string    `json:"mode"`
	SubMode    string    `json:"subMode,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
	Ranking    []RankingEntry
	Scoreboard []ScoreboardEntry
}
