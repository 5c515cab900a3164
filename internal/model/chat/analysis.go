package chat

// AnalysisMetric scores the idea along one dimension.
type AnalysisMetric struct {
	Metric    string `json:"metric"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// AnalysisResult is a complete feasibility report. It is only ever produced
// whole by the model gateway.
type AnalysisResult struct {
	IdeaName       string           `json:"ideaName"`
	Summary        string           `json:"summary"`
	Metrics        []AnalysisMetric `json:"metrics"`
	OverallScore   int              `json:"overallScore"`
	Recommendation string           `json:"recommendation"`
}

// Clone returns a deep copy, or nil for a nil result.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metrics != nil {
		out.Metrics = make([]AnalysisMetric, len(r.Metrics))
		copy(out.Metrics, r.Metrics)
	}
	return &out
}

// AnalysisTicket identifies one in-flight analysis request.
type AnalysisTicket struct {
	SessionID string
	Seq       uint64
}
