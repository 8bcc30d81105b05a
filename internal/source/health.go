package source

import "time"

// Health tracks one source's rolling request outcomes and derived score.
type Health struct {
	Successes       uint32
	Failures        uint32
	AvgResponseTime time.Duration
	LastUsed        time.Time
	Score           uint8
	Active          bool
}

func newHealth() Health {
	return Health{Score: 100, Active: true}
}

// recordResult folds one request outcome into h: success/failure counts,
// the rolling average response time (70% old, 30% new), the derived score,
// and the score-driven active flag.
func (h *Health) recordResult(success bool, responseTime time.Duration) {
	if success {
		h.Successes++
	} else {
		h.Failures++
	}

	ms := responseTime.Milliseconds()
	if h.AvgResponseTime == 0 {
		h.AvgResponseTime = responseTime
	} else {
		h.AvgResponseTime = time.Duration(h.AvgResponseTime.Milliseconds()*7+ms*3) * time.Millisecond / 10
	}

	h.Score = calculateScore(h.Successes, h.Failures, h.AvgResponseTime)
	h.Active = h.Score > 20
}

// calculateScore is a 70/30 weighted combination of success rate and a
// piecewise-linear latency score: <100ms -> 80-100, <500ms -> 60-80,
// <1s -> 40-60, >=1s -> <=40.
func calculateScore(successes, failures uint32, avgResponseTime time.Duration) uint8 {
	total := successes + failures
	if total == 0 {
		return 100
	}
	successRate := float64(successes) * 100 / float64(total)

	ms := float64(avgResponseTime.Milliseconds())
	var timeScore float64
	switch {
	case ms < 100:
		timeScore = 80 + 20*(100-ms)/100
	case ms < 500:
		timeScore = 60 + 20*(500-ms)/400
	case ms < 1000:
		timeScore = 40 + 20*(1000-ms)/500
	default:
		if ms < 1 {
			ms = 1
		}
		timeScore = 40 * 1000 / ms
	}

	score := successRate*0.7 + timeScore*0.3
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return uint8(score)
	}
}
