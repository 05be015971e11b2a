package models

// PlatformResult counts the outcome of one platform's contribution to an
// ingestion run. FailureReason is set when the adapter itself failed.
type PlatformResult struct {
	Platform      string `json:"platform"`
	Fetched       int    `json:"fetched"`
	Normalized    int    `json:"normalized"`
	Invalid       int    `json:"invalid"`
	Merged        int    `json:"merged"`
	Created       int    `json:"created"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// IngestSummary is what an ingestion run reports back to the caller.
// Partial platform failures are enumerated here, not escalated.
type IngestSummary struct {
	Location  string           `json:"location"`
	Platforms []PlatformResult `json:"platforms"`
}

// Totals sums the per-platform counters.
func (s *IngestSummary) Totals() PlatformResult {
	var t PlatformResult
	for _, p := range s.Platforms {
		t.Fetched += p.Fetched
		t.Normalized += p.Normalized
		t.Invalid += p.Invalid
		t.Merged += p.Merged
		t.Created += p.Created
	}
	return t
}

// Failed returns the platforms whose adapter failed outright.
func (s *IngestSummary) Failed() []string {
	var failed []string
	for _, p := range s.Platforms {
		if p.FailureReason != "" {
			failed = append(failed, p.Platform)
		}
	}
	return failed
}
