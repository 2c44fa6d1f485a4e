// camsim is a fake inference backend for exercising the daemon locally.
// It serves /ws/monitor/{camera} and pushes annotated frames with a
// configurable compliance pattern, plus occasional status and incident
// messages.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	addr          = flag.String("addr", "127.0.0.1:8000", "listen address")
	fps           = flag.Int("fps", 10, "frames per second per camera")
	violationRate = flag.Float64("violations", 0.15, "probability a frame is non-compliant")
	incidentEvery = flag.Int("incident-every", 200, "propose an incident every N frames (0 disables)")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type detectionResult struct {
	IsCompliant         bool               `json:"is_compliant"`
	DetectedClasses     []string           `json:"detected_classes"`
	SafetyStatus        string             `json:"safety_status"`
	ViolationType       string             `json:"violation_type"`
	ConfidenceScores    map[string]float64 `json:"confidence_scores"`
	PersonCount         int                `json:"person_count"`
	TotalViolationCount int                `json:"total_violation_count"`
}

type outboundMessage struct {
	Type     string           `json:"type"`
	Frame    string           `json:"frame,omitempty"`
	Results  *detectionResult `json:"results,omitempty"`
	Message  string           `json:"message,omitempty"`
	Incident json.RawMessage  `json:"incident,omitempty"`
}

func main() {
	flag.Parse()

	http.HandleFunc("/ws/monitor/", handleMonitor)

	fmt.Printf("camsim listening on %s (fps=%d, violation rate=%.2f)\n", *addr, *fps, *violationRate)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleMonitor(w http.ResponseWriter, r *http.Request) {
	camera := strings.TrimPrefix(r.URL.Path, "/ws/monitor/")
	if camera == "" {
		http.Error(w, "missing camera id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("%s: upgrade failed: %s", camera, err)
		return
	}
	defer conn.Close()

	log.Printf("%s: stream opened", camera)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := conn.WriteJSON(outboundMessage{Type: "status", Message: "Stream established"}); err != nil {
		return
	}

	frame := encodeFrame(camera, rng)
	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	totalViolations := 0
	for n := 1; ; n++ {
		<-ticker.C

		res := &detectionResult{
			IsCompliant:     true,
			DetectedClasses: []string{"person", "hardhat", "safety-vest"},
			SafetyStatus:    "All workers compliant",
			PersonCount:     1 + rng.Intn(4),
			ConfidenceScores: map[string]float64{
				"person":  0.80 + rng.Float64()*0.19,
				"hardhat": 0.70 + rng.Float64()*0.29,
			},
		}
		if rng.Float64() < *violationRate {
			totalViolations++
			res.IsCompliant = false
			res.SafetyStatus = "Violation detected"
			res.ViolationType = "missing-hardhat"
			res.DetectedClasses = []string{"person", "no-hardhat"}
		}
		res.TotalViolationCount = totalViolations

		msg := outboundMessage{Type: "frame", Frame: frame, Results: res}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("%s: stream closed: %s", camera, err)
			return
		}

		if *incidentEvery > 0 && n%*incidentEvery == 0 {
			incident, _ := json.Marshal(map[string]any{
				"camera_id":   camera,
				"title":       "Repeated hardhat violation",
				"description": fmt.Sprintf("Detected %d violations on %s", totalViolations, camera),
				"severity":    "high",
			})
			if err := conn.WriteJSON(outboundMessage{Type: "incident", Incident: incident}); err != nil {
				return
			}
		}
	}
}

// encodeFrame renders a flat-colored JPEG so every camera streams a
// visually distinct, decodable payload.
func encodeFrame(camera string, rng *rand.Rand) string {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	c := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		log.Printf("%s: frame encode failed: %s", camera, err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
