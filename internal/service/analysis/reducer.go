package analysis

import (
	"strings"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// ErrInvalidInput is returned for blank ideas and requests while one is loading.
var ErrInvalidInput = chat.ErrInvalidInput

// Reducer holds the latest feasibility result of the active session. The
// result is either nil or a complete value; it is never partially written.
type Reducer struct {
	result  *chat.AnalysisResult
	loading bool
}

// New returns an empty reducer.
func New() *Reducer {
	return &Reducer{}
}

// Start marks a request as loading and clears the previous result.
func (r *Reducer) Start(idea string) error {
	if strings.TrimSpace(idea) == "" || r.loading {
		return ErrInvalidInput
	}
	r.loading = true
	r.result = nil
	return nil
}

// Complete installs a copy of result and clears loading.
func (r *Reducer) Complete(result *chat.AnalysisResult) {
	r.result = result.Clone()
	r.loading = false
}

// Fail clears loading and leaves no result.
func (r *Reducer) Fail() {
	r.result = nil
	r.loading = false
}

// Restore installs a stored result verbatim.
func (r *Reducer) Restore(result *chat.AnalysisResult) {
	r.result = result.Clone()
	r.loading = false
}

// Clear drops the result and any in-flight request.
func (r *Reducer) Clear() {
	r.Restore(nil)
}

// Result returns a copy of the current result, or nil.
func (r *Reducer) Result() *chat.AnalysisResult {
	return r.result.Clone()
}

// HasResult reports whether a result is present.
func (r *Reducer) HasResult() bool {
	return r.result != nil
}

// Loading reports whether a request is in flight.
func (r *Reducer) Loading() bool {
	return r.loading
}
