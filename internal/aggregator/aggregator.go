package aggregator

import (
	"sort"

	"voice-agent-console/internal/types"
)

// LoadDuration is one bar of the duration-by-load chart.
type LoadDuration struct {
	Load         string  `json:"load"`
	DurationSecs float64 `json:"duration_secs"`
}

// KeywordTotal is one slice of the keyword-hit distribution.
type KeywordTotal struct {
	Keyword string `json:"keyword"`
	Hits    int    `json:"hits"`
}

type PipecatRollup struct {
	Calls           int            `json:"calls"`
	AvgDurationSecs float64        `json:"avg_duration_secs"`
	Emergencies     int            `json:"emergencies"`
	DurationByLoad  []LoadDuration `json:"duration_by_load"`
	KeywordTotals   []KeywordTotal `json:"keyword_totals"`
}

// Aggregate summarises per-call Pipecat rows. Rows without a load number
// are labelled by their id.
func Aggregate(rows []types.PipecatCallMetric) PipecatRollup {
	out := PipecatRollup{
		Calls:          len(rows),
		DurationByLoad: make([]LoadDuration, 0, len(rows)),
		KeywordTotals:  []KeywordTotal{},
	}
	var total float64
	hits := map[string]int{}
	for _, r := range rows {
		total += r.DurationSecs
		out.Emergencies += r.KeywordHits["emergency"]
		for k, v := range r.KeywordHits {
			hits[k] += v
		}
		load := r.LoadNumber
		if load == "" {
			load = string(r.ID)
		}
		out.DurationByLoad = append(out.DurationByLoad, LoadDuration{Load: load, DurationSecs: r.DurationSecs})
	}
	if len(rows) > 0 {
		out.AvgDurationSecs = total / float64(len(rows))
	}

	for k, v := range hits {
		out.KeywordTotals = append(out.KeywordTotals, KeywordTotal{Keyword: k, Hits: v})
	}
	sort.Slice(out.KeywordTotals, func(i, j int) bool {
		if out.KeywordTotals[i].Hits != out.KeywordTotals[j].Hits {
			return out.KeywordTotals[i].Hits > out.KeywordTotals[j].Hits
		}
		return out.KeywordTotals[i].Keyword < out.KeywordTotals[j].Keyword
	})
	return out
}
