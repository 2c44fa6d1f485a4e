package models

// DetectionResult is the per-frame payload reported by the inference
// backend. It is optional on any given stream message: a pure status
// ping carries no detection payload.
type DetectionResult struct {
	IsCompliant         bool               `json:"is_compliant"`
	DetectedClasses     []string           `json:"detected_classes"`
	SafetyStatus        string             `json:"safety_status"`
	ViolationType       string             `json:"violation_type"`
	ConfidenceScores    map[string]float64 `json:"confidence_scores"`
	PersonCount         int                `json:"person_count"`
	TotalViolationCount int                `json:"total_violation_count"`
}

// LiveDetection is the last observed detection state of one session.
type LiveDetection struct {
	IsCompliant        bool               `json:"is_compliant"`
	DetectedClasses    []string           `json:"detected_classes"`
	SafetyStatusText   string             `json:"safety_status_text"`
	ViolationType      string             `json:"violation_type,omitempty"`
	ConfidenceByClass  map[string]float64 `json:"confidence_by_class,omitempty"`
}

// StoppedDetection is the neutral state a session gets when streaming stops.
func StoppedDetection() LiveDetection {
	return LiveDetection{
		IsCompliant:      true,
		SafetyStatusText: "Monitoring stopped",
	}
}

// LiveDetectionFrom converts a wire detection result into session state.
func LiveDetectionFrom(res *DetectionResult) LiveDetection {
	if res == nil {
		return StoppedDetection()
	}
	return LiveDetection{
		IsCompliant:       res.IsCompliant,
		DetectedClasses:   res.DetectedClasses,
		SafetyStatusText:  res.SafetyStatus,
		ViolationType:     res.ViolationType,
		ConfidenceByClass: res.ConfidenceScores,
	}
}
