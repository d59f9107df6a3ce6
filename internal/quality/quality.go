// Package quality classifies water-quality scores and parameter values.
package quality

import "strings"

// Quality statuses as produced by the backend fuzzy analysis.
const (
	Excellent = "excellent"
	Good      = "good"
	Fair      = "fair"
	Poor      = "poor"
	Critical  = "critical"
)

type threshold struct {
	min    float64
	status string
}

var scoreThresholds = []threshold{
	{85, Excellent},
	{70, Good},
	{50, Fair},
	{30, Poor},
	{0, Critical},
}

// StatusForScore maps a 0..100 quality score to its status.
func StatusForScore(score float64) string {
	for _, t := range scoreThresholds {
		if score >= t.min {
			return t.status
		}
	}
	return Critical
}

var indonesianStatus = map[string]string{
	"sangat baik":  Excellent,
	"baik":         Good,
	"sedang":       Fair,
	"buruk":        Poor,
	"sangat buruk": Critical,
}

// NormalizeStatus maps a status label in any case, English or Indonesian,
// to its canonical status.
func NormalizeStatus(label string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	switch key {
	case Excellent, Good, Fair, Poor, Critical:
		return key, true
	}
	status, ok := indonesianStatus[key]
	return status, ok
}

// Trend tells whether a status is good news, neutral or bad news.
type Trend int

const (
	TrendUnknown Trend = iota
	TrendUp
	TrendNeutral
	TrendDown
)

// TrendOf classifies a status label.
func TrendOf(label string) Trend {
	status, ok := NormalizeStatus(label)
	if !ok {
		return TrendUnknown
	}
	switch status {
	case Poor, Critical:
		return TrendDown
	case Fair:
		return TrendNeutral
	}
	return TrendUp
}
