// Package ranking orders links by click volume.
//
// TopByClicks keeps a min-heap of at most k links while scanning, so a
// ranking costs O(n log k) time and O(k) extra space instead of sorting
// every link. Equal click counts are ordered by code ascending, both in the
// heap and in the final result, which makes the output identical to a full
// sort truncated to k.
package ranking

import (
	"container/heap"
	"slices"

	"github.com/sifan077/HashURL/internal/app/model"
)

// Source provides the links to rank. The repository satisfies it.
type Source interface {
	Snapshot() []model.Link
}

// Ranker ranks the current contents of a Source.
type Ranker struct {
	source Source
}

// NewRanker returns a Ranker reading from source.
func NewRanker(source Source) *Ranker {
	return &Ranker{source: source}
}

// Top returns up to k links with the most clicks, best first.
func (r *Ranker) Top(k int) []model.Link {
	if k <= 0 {
		return []model.Link{}
	}
	return TopByClicks(r.source.Snapshot(), k)
}

// Stats aggregates click counts over the current contents of the source.
func (r *Ranker) Stats() model.RankingStats {
	return Aggregate(r.source.Snapshot())
}

// ranksAbove reports whether a belongs before b in a ranking.
func ranksAbove(a, b model.Link) bool {
	if a.ClickCount != b.ClickCount {
		return a.ClickCount > b.ClickCount
	}
	return a.Code < b.Code
}

// compareRank is the slices.SortFunc form of ranksAbove.
func compareRank(a, b model.Link) int {
	switch {
	case ranksAbove(a, b):
		return -1
	case ranksAbove(b, a):
		return 1
	default:
		return 0
	}
}

// minHeap keeps the lowest-ranked link at index 0.
type minHeap []model.Link

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(model.Link)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopByClicks returns up to k links ordered by click count descending.
// k <= 0 yields an empty result; k larger than len(links) yields every link.
func TopByClicks(links []model.Link, k int) []model.Link {
	if k <= 0 || len(links) == 0 {
		return []model.Link{}
	}

	h := make(minHeap, 0, min(k, len(links)))
	for _, l := range links {
		if h.Len() < k {
			heap.Push(&h, l)
			continue
		}
		if ranksAbove(l, h[0]) {
			h[0] = l
			heap.Fix(&h, 0)
		}
	}

	result := []model.Link(h)
	slices.SortFunc(result, compareRank)
	return result
}

// TopByClicksFullSort sorts a copy of every link and truncates it to k.
// It gives the same answer as TopByClicks at O(n log n) cost.
func TopByClicksFullSort(links []model.Link, k int) []model.Link {
	if k <= 0 || len(links) == 0 {
		return []model.Link{}
	}

	sorted := slices.Clone(links)
	slices.SortFunc(sorted, compareRank)
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

// Aggregate computes totals in a single pass over links.
func Aggregate(links []model.Link) model.RankingStats {
	var stats model.RankingStats
	for _, l := range links {
		stats.TotalClicks += l.ClickCount
		stats.MaxClicks = max(stats.MaxClicks, l.ClickCount)
	}
	stats.TotalURLs = len(links)
	if stats.TotalURLs > 0 {
		stats.AverageClicks = float64(stats.TotalClicks) / float64(stats.TotalURLs)
	}
	return stats
}
