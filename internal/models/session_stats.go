package models

import (
	"fmt"
	"math"
	"time"
)

// ViolationPolicy selects how violations are counted for a deployment.
// A session never mixes policies within one streaming run.
type ViolationPolicy int

const (
	// PolicyEdgeTriggered counts one violation per compliant to
	// non-compliant transition with a person in frame, so a sustained
	// violation is not counted once per frame.
	PolicyEdgeTriggered ViolationPolicy = iota
	// PolicyInstantaneousTotal mirrors the backend-reported total
	// violation count of the current frame.
	PolicyInstantaneousTotal
)

func ParseViolationPolicy(s string) (ViolationPolicy, error) {
	switch s {
	case "edge":
		return PolicyEdgeTriggered, nil
	case "total":
		return PolicyInstantaneousTotal, nil
	}
	return PolicyEdgeTriggered, fmt.Errorf("unknown violation policy %q", s)
}

func (p ViolationPolicy) String() string {
	if p == PolicyInstantaneousTotal {
		return "total"
	}
	return "edge"
}

const (
	fpsSmoothingOld = 0.7
	fpsSmoothingNew = 0.3
)

// UpdateStats derives the next stats value from the previous one and a
// freshly decoded detection result. It is a pure function: neither input
// is mutated. A nil result (malformed or absent payload) leaves the
// stats unchanged and does not count a frame.
func UpdateStats(prev SessionStats, prevDetection LiveDetection, now time.Time, res *DetectionResult, policy ViolationPolicy) SessionStats {
	if res == nil {
		return prev
	}

	next := prev
	next.TotalFrames = prev.TotalFrames + 1
	next.PersonCount = res.PersonCount

	if !prev.LastFrameAt.IsZero() {
		dt := now.Sub(prev.LastFrameAt).Seconds()
		if dt > 0 {
			instant := 1 / dt
			next.FPS = math.Round(prev.FPS*fpsSmoothingOld + instant*fpsSmoothingNew)
		}
	} else if next.TotalFrames > 1 && !prev.StreamStartedAt.IsZero() {
		elapsed := now.Sub(prev.StreamStartedAt).Seconds()
		if elapsed > 0 {
			next.FPS = math.Round(float64(next.TotalFrames) / elapsed)
		}
	} else {
		next.FPS = 1
	}

	switch policy {
	case PolicyInstantaneousTotal:
		next.ViolationCount = res.TotalViolationCount
	default:
		if prevDetection.IsCompliant && !res.IsCompliant && res.PersonCount > 0 {
			next.ViolationCount = prev.ViolationCount + 1
		}
	}

	// LastFrameAt never goes backwards while streaming.
	if now.Before(prev.LastFrameAt) {
		next.LastFrameAt = prev.LastFrameAt
	} else {
		next.LastFrameAt = now
	}

	return next
}
