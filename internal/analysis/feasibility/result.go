package feasibility

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// Metrics is the conceptual metric set every analysis scores, in display order.
var Metrics = []string{"Feasibility", "Desirability", "Viability", "Novelty", "Timing"}

// ErrInvalid reports a payload that does not describe a complete analysis.
var ErrInvalid = errors.New("invalid analysis payload")

// Band buckets a 0-100 score for display.
type Band string

const (
	Strong   Band = "strong"
	Moderate Band = "moderate"
	Weak     Band = "weak"
)

// BandFor maps a score to its band.
func BandFor(score int) Band {
	switch {
	case score > 75:
		return Strong
	case score > 50:
		return Moderate
	default:
		return Weak
	}
}

type rawMetric struct {
	Metric    string   `json:"metric"`
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

type rawResult struct {
	IdeaName       string      `json:"ideaName"`
	Summary        string      `json:"summary"`
	OverallScore   *float64    `json:"overallScore"`
	Recommendation string      `json:"recommendation"`
	Metrics        []rawMetric `json:"metrics"`
}

// Parse extracts the outermost JSON object from content and converts it into a
// validated result. Code fences and prose around the object are ignored.
func Parse(content string) (*chat.AnalysisResult, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: missing json object", ErrInvalid)
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return raw.toResult()
}

func (r rawResult) toResult() (*chat.AnalysisResult, error) {
	name := strings.TrimSpace(r.IdeaName)
	if name == "" {
		return nil, fmt.Errorf("%w: ideaName is empty", ErrInvalid)
	}
	if len(r.Metrics) == 0 {
		return nil, fmt.Errorf("%w: metrics are empty", ErrInvalid)
	}

	metrics := make([]chat.AnalysisMetric, 0, len(r.Metrics))
	for i, m := range r.Metrics {
		if strings.TrimSpace(m.Metric) == "" {
			return nil, fmt.Errorf("%w: metric %d has no name", ErrInvalid, i)
		}
		if m.Score == nil {
			return nil, fmt.Errorf("%w: metric %q has no score", ErrInvalid, m.Metric)
		}
		score, err := toScore(*m.Score)
		if err != nil {
			return nil, fmt.Errorf("%w: metric %q: %v", ErrInvalid, m.Metric, err)
		}
		metrics = append(metrics, chat.AnalysisMetric{
			Metric:    strings.TrimSpace(m.Metric),
			Score:     score,
			Reasoning: strings.TrimSpace(m.Reasoning),
		})
	}

	overall := Average(metrics)
	if r.OverallScore != nil {
		score, err := toScore(*r.OverallScore)
		if err != nil {
			return nil, fmt.Errorf("%w: overallScore: %v", ErrInvalid, err)
		}
		overall = score
	}

	return &chat.AnalysisResult{
		IdeaName:       name,
		Summary:        strings.TrimSpace(r.Summary),
		Metrics:        metrics,
		OverallScore:   overall,
		Recommendation: strings.TrimSpace(r.Recommendation),
	}, nil
}

func toScore(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("score is not a number")
	}
	rounded := int(math.Round(v))
	if rounded < 0 || rounded > 100 {
		return 0, fmt.Errorf("score %v outside [0,100]", v)
	}
	return rounded, nil
}

// Average returns the rounded mean metric score, or 0 for no metrics.
func Average(metrics []chat.AnalysisMetric) int {
	if len(metrics) == 0 {
		return 0
	}
	total := 0
	for _, m := range metrics {
		total += m.Score
	}
	return int(math.Round(float64(total) / float64(len(metrics))))
}

// Validate checks an already-typed result against the same rules Parse applies.
func Validate(r *chat.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("%w: result is nil", ErrInvalid)
	}
	if strings.TrimSpace(r.IdeaName) == "" {
		return fmt.Errorf("%w: ideaName is empty", ErrInvalid)
	}
	if len(r.Metrics) == 0 {
		return fmt.Errorf("%w: metrics are empty", ErrInvalid)
	}
	for _, m := range r.Metrics {
		if m.Score < 0 || m.Score > 100 {
			return fmt.Errorf("%w: metric %q score %d outside [0,100]", ErrInvalid, m.Metric, m.Score)
		}
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return fmt.Errorf("%w: overallScore %d outside [0,100]", ErrInvalid, r.OverallScore)
	}
	return nil
}
