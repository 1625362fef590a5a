package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimkichan1225/GameForge-sub000/game"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndListMatches(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	first := game.MatchRecord{
		RoomId:     "AAAAAA",
		RoomName:   "morning race",
		Mode:       "race",
		FinishedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Ranking: []game.RankingEntry{
			{Rank: 1, PlayerId: "p1", Nickname: "naruto", TimeMs: 61234},
			{Rank: 2, PlayerId: "p2", Nickname: "sasuke", Dnf: true},
		},
	}
	second := game.MatchRecord{
		RoomId:     "BBBBBB",
		RoomName:   "evening shootout",
		Mode:       "shooter",
		SubMode:    "team",
		FinishedAt: time.Date(2026, 8, 2, 20, 0, 0, 0, time.UTC),
		Scoreboard: []game.ScoreboardEntry{
			{PlayerId: "p1", Nickname: "naruto", Team: "red", Kills: 7, Deaths: 2},
		},
	}
	require.NoError(t, store.RecordMatch(first))
	require.NoError(t, store.RecordMatch(second))

	matches, err := store.RecentMatches(10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// newest first
	assert.Equal(t, "BBBBBB", matches[0].RoomId)
	assert.Equal(t, "team", matches[0].SubMode)
	require.Len(t, matches[0].Scoreboard, 1)
	assert.Equal(t, 7, matches[0].Scoreboard[0].Kills)

	assert.Equal(t, "AAAAAA", matches[1].RoomId)
	require.Len(t, matches[1].Ranking, 2)
	assert.Equal(t, "naruto", matches[1].Ranking[0].Nickname)
	assert.True(t, matches[1].Ranking[1].Dnf)
}

func TestStore_RecentMatchesLimit(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordMatch(game.MatchRecord{
			RoomId:     "ROOM",
			RoomName:   "spam",
			Mode:       "race",
			FinishedAt: time.Date(2026, 8, 1, 10, i, 0, 0, time.UTC),
		}))
	}

	matches, err := store.RecentMatches(3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// a non-positive limit falls back to the default page size
	matches, err = store.RecentMatches(0)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
}

func TestStore_EmptyListing(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	matches, err := store.RecentMatches(10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
