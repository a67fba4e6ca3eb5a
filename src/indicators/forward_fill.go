package indicators

import (
	"sort"
	"time"
)

// ForwardFill reindexes a sparse boolean series onto a denser index: each
// output point takes the latest source value observed at or before it.
// Points before the first observation are false. src must be sorted.
func ForwardFill(srcTimes []time.Time, srcValues []bool, index []time.Time) []bool {
	out := make([]bool, len(index))
	if len(srcTimes) == 0 || len(srcTimes) != len(srcValues) {
		return out
	}

	for i, ts := range index {
		// first source observation strictly after ts
		pos := sort.Search(len(srcTimes), func(j int) bool {
			return srcTimes[j].After(ts)
		})
		if pos == 0 {
			continue
		}
		out[i] = srcValues[pos-1]
	}
	return out
}
