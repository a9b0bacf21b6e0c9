package ingest

// RowIssue is one row-level error or warning entry in a report.
type RowIssue struct {
	RowNumber int      `json:"row_number"`
	Key       string   `json:"key"`
	Messages  []string `json:"messages"`
}

// Report is the structured outcome of one bulk upload. Partial success is
// the norm; failing rows never abort the batch.
type Report struct {
	TotalRows    int        `json:"total_rows"`
	Valid        int        `json:"valid"`
	Invalid      int        `json:"invalid"`
	WithWarnings int        `json:"with_warnings"`
	Errors       []RowIssue `json:"errors"`
	Warnings     []RowIssue `json:"warnings"`
	Created      []string   `json:"created"`
	Updated      []string   `json:"updated"`
}

// NewReport initializes an empty report.
func NewReport() *Report {
	return &Report{
		Errors:   []RowIssue{},
		Warnings: []RowIssue{},
		Created:  []string{},
		Updated:  []string{},
	}
}

// Absorb folds one row result into the report counters.
func (r *Report) Absorb(res *RowResult) {
	r.TotalRows++
	if len(res.Warnings) > 0 {
		r.WithWarnings++
		r.Warnings = append(r.Warnings, RowIssue{RowNumber: res.RowNumber, Key: res.Key, Messages: res.Warnings})
	}
	if res.Valid() {
		r.Valid++
		return
	}
	r.Invalid++
	r.Errors = append(r.Errors, RowIssue{RowNumber: res.RowNumber, Key: res.Key, Messages: res.Errors})
}

// Fail converts an already-counted valid row into a failure, used when
// persistence rejects a row that passed validation.
func (r *Report) Fail(res *RowResult, message string) {
	r.Valid--
	r.Invalid++
	r.Errors = append(r.Errors, RowIssue{RowNumber: res.RowNumber, Key: res.Key, Messages: []string{message}})
}
