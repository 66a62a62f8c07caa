// Package rotation picks a deterministic, time-bucketed subset of an agent's
// ranked candidates so repeated calls within the same five seconds agree and
// successive buckets cycle through the pool.
package rotation

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

// BucketSize is the width of one rotation window.
const BucketSize = 5 * time.Second

const (
	selectionFactor = 5
	outputFactor    = 3
)

// HashString is the 31-multiplier string hash over UTF-16 code units with
// int32 wraparound, returned as a non-negative value.
func HashString(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// AgentSeed is the sum of the first and last UTF-16 code units of the agent id.
func AgentSeed(agentID string) int64 {
	units := utf16.Encode([]rune(agentID))
	if len(units) == 0 {
		return 0
	}
	return int64(units[0]) + int64(units[len(units)-1])
}

// TimeBucket returns floor(now in ms / 5000).
func TimeBucket(now time.Time) int64 {
	ms := now.UnixMilli()
	bucket := ms / BucketSize.Milliseconds()
	if ms < 0 && ms%BucketSize.Milliseconds() != 0 {
		bucket--
	}
	return bucket
}

// Shuffle permutes items in place with a Fisher-Yates pass whose swap index
// is derived from the seed, the position and the item id.
func Shuffle(items []domain.ScoredMarket, seed int64) {
	for i := len(items) - 1; i > 0; i-- {
		h := HashString(fmt.Sprintf("%d:%d:%s", seed, i, items[i].ID))
		j := int(h % int64(i+1))
		items[i], items[j] = items[j], items[i]
	}
}

// Select takes ranked candidates (AgentScore descending), keeps the top
// 5*maxTrades, shuffles them for the current bucket and returns at most
// 3*maxTrades. The input slice is not modified.
func Select(ranked []domain.ScoredMarket, agentID string, maxTrades int, now time.Time) []domain.ScoredMarket {
	if maxTrades < 1 || len(ranked) == 0 {
		return nil
	}
	pool := min(selectionFactor*maxTrades, len(ranked))
	out := make([]domain.ScoredMarket, pool)
	copy(out, ranked[:pool])

	Shuffle(out, TimeBucket(now)+AgentSeed(agentID))

	return out[:min(outputFactor*maxTrades, len(out))]
}
