package domain

import (
	"sort"
	"strconv"
)

// QueueCounts are the aggregates derived from a projected snapshot.
// Unplayed + Played == Total always holds.
type QueueCounts struct {
	Total    int `json:"total"`
	Unplayed int `json:"unplayed"`
	Played   int `json:"played"`
}

// FromSnapshot converts a raw backend snapshot (storage key -> record) into an
// ordered sequence. The record's own id field is authoritative; when it is
// absent the storage key is parsed as the id, a fallback for legacy or partial
// records. Entries are sorted ascending by id.
func FromSnapshot(entries map[string]Request) []Request {
	requests := make([]Request, 0, len(entries))
	for key, req := range entries {
		if req.ID == 0 {
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				req.ID = id
			}
		}
		requests = append(requests, req)
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests
}

// OrderActive orders an active-queue sequence for display: unplayed entries
// first, played entries last, ascending by id within each group. The staged
// queue is displayed ascending by id only, which FromSnapshot already yields.
func OrderActive(requests []Request) []Request {
	ordered := make([]Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Played != ordered[j].Played {
			return !ordered[i].Played
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// CountsOf derives the aggregate counts for a projected sequence.
func CountsOf(requests []Request) QueueCounts {
	counts := QueueCounts{Total: len(requests)}
	for _, req := range requests {
		if req.Played {
			counts.Played++
		} else {
			counts.Unplayed++
		}
	}
	return counts
}
