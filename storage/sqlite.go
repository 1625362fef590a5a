package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kimkichan1225/GameForge-sub000/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id     TEXT NOT NULL,
	room_name   TEXT NOT NULL,
	mode        TEXT NOT NULL,
	sub_mode    TEXT NOT NULL DEFAULT '',
	finished_at TIMESTAMP NOT NULL,
	results     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_finished_at ON matches(finished_at);
`

// Store persists finished match results. In-progress matches are never
// written; a server restart simply loses them.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite does not support concurrent writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type matchResults struct {
	Ranking    []game.RankingEntry    `json:"ranking,omitempty"`
	Scoreboard []game.ScoreboardEntry `json:"scoreboard,omitempty"`
}

func (s *Store) RecordMatch(rec game.MatchRecord) error {
	results, err := json.Marshal(matchResults{Ranking: rec.Ranking, Scoreboard: rec.Scoreboard})
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO matches (room_id, room_name, mode, sub_mode, finished_at, results) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RoomId, rec.RoomName, rec.Mode, rec.SubMode, rec.FinishedAt.UTC(), string(results),
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// MatchSummary is one row of the match-history listing.
type MatchSummary struct {
	Id         int64                  `json:"id"`
	RoomId     string                 `json:"roomId"`
	RoomName   string                 `json:"roomName"`
	Mode       string                 `json:"mode"`
	SubMode    string                 `json:"subMode,omitempty"`
	FinishedAt time.Time              `json:"finishedAt"`
	Ranking    []game.RankingEntry    `json:"ranking,omitempty"`
	Scoreboard []game.ScoreboardEntry `json:"scoreboard,omitempty"`
}

func (s *Store) RecentMatches(limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, room_id, room_name, mode, sub_mode, finished_at, results
		 FROM matches ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	summaries := make([]MatchSummary, 0, limit)
	for rows.Next() {
		var m MatchSummary
		var results string
		if err := rows.Scan(&m.Id, &m.RoomId, &m.RoomName, &m.Mode, &m.SubMode, &m.FinishedAt, &results); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		var parsed matchResults
		if err := json.Unmarshal([]byte(results), &parsed); err == nil {
			m.Ranking = parsed.Ranking
			m.Scoreboard = parsed.Scoreboard
		}
		summaries = append(summaries, m)
	}
	return summaries, rows.Err()
}
