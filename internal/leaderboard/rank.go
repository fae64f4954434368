// Package leaderboard ranks ideas by the votes recorded in the ledger.
package leaderboard

import (
	"sort"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// Entry is one ranked idea.
type Entry struct {
	Position int         `json:"position"`
	Idea     models.Idea `json:"idea"`
	Votes    int         `json:"votes"`
	Voters   []uuid.UUID `json:"voters"`
}

// Summary holds the session totals shown with the leaderboard.
type Summary struct {
	TotalIdeas   int `json:"total_ideas"`
	TotalVotes   int `json:"total_votes"`
	UniqueVoters int `json:"unique_voters"`
}

// Rank orders ideas by vote count, highest first. Ties keep the order of ideas,
// so the same input always yields the same ranking. Votes for unknown ideas are ignored.
func Rank(ideas []models.Idea, votes []models.Vote) []Entry {
	byIdea := make(map[uuid.UUID][]uuid.UUID, len(ideas))
	for _, v := range votes {
		byIdea[v.IdeaID] = append(byIdea[v.IdeaID], v.TargetUserID)
	}

	entries := make([]Entry, 0, len(ideas))
	for _, idea := range ideas {
		voters := byIdea[idea.ID]
		if voters == nil {
			voters = []uuid.UUID{}
		}
		entries = append(entries, Entry{Idea: idea, Votes: len(voters), Voters: voters})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Votes > entries[j].Votes
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

// Summarize counts ideas, votes on those ideas and distinct beneficiaries.
func Summarize(ideas []models.Idea, votes []models.Vote) Summary {
	known := make(map[uuid.UUID]struct{}, len(ideas))
	for _, idea := range ideas {
		known[idea.ID] = struct{}{}
	}
	voters := make(map[uuid.UUID]struct{})
	total := 0
	for _, v := range votes {
		if _, ok := known[v.IdeaID]; !ok {
			continue
		}
		total++
		voters[v.TargetUserID] = struct{}{}
	}
	return Summary{TotalIdeas: len(ideas), TotalVotes: total, UniqueVoters: len(voters)}
}

// Podium splits a ranking into the first n entries and the rest.
func Podium(entries []Entry, n int) (top, rest []Entry) {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n], entries[n:]
}
