package models

import "math"

// Aggregate folds the given session snapshot into system-wide totals.
// Only streaming sessions contribute. It owns no state and is
// deterministic for a given snapshot.
func Aggregate(sessions []FeedSession) GlobalStats {
	stats := GlobalStats{ComplianceRate: 100}

	streaming := 0
	fpsSum := 0.0
	for _, s := range sessions {
		if !s.IsStreaming {
			continue
		}
		streaming++
		stats.TotalViolations += s.Stats.ViolationCount
		stats.TotalFrames += s.Stats.TotalFrames
		fpsSum += s.Stats.FPS
	}

	if streaming > 0 {
		stats.AverageFPS = math.Round(fpsSum / float64(streaming))
	}
	if stats.TotalFrames > 0 {
		stats.ComplianceRate = math.Round(float64(stats.TotalFrames-stats.TotalViolations) / float64(stats.TotalFrames) * 100)
	}

	return stats
}
