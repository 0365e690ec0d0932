package export

import (
	"tabnorm/internal/normalize"
	"tabnorm/internal/profile"
	"tabnorm/internal/table"
)

// Report summarizes a run. rows, columns and profiles describe the cleaned
// table and the raw columns it came from.
type Report struct {
	RunID    string                  `json:"run_id,omitempty"`
	Source   string                  `json:"source,omitempty"`
	RunDate  string                  `json:"run_date,omitempty"`
	Rows     int                     `json:"rows"`
	Columns  int                     `json:"columns"`
	Profiles []profile.ColumnProfile `json:"profiles"`
	Cleaned  []ColumnSummary         `json:"cleaned,omitempty"`

	// DuplicateRows are loaded once when the row hash dedupes storage.
	DuplicateRows int `json:"duplicate_rows"`
}

// ColumnSummary is what normalization produced for one column.
type ColumnSummary struct {
	Name           string             `json:"name"`
	Type           table.SemanticType `json:"type"`
	Missing        int                `json:"missing"`
	CoercedMissing int                `json:"coerced_missing"`
	RescuedAsDate  bool               `json:"rescued_as_date,omitempty"`
}

// NewReport builds the report for run. Stats may be nil.
func NewReport(run Run) Report {
	r := Report{
		RunID:    run.RunID,
		Source:   run.Input,
		Rows:     run.Table.Rows(),
		Columns:  len(run.Table.Columns),
		Profiles: run.Profiles,

		DuplicateRows: run.DuplicateRows,
	}
	if !run.Date.IsZero() {
		r.RunDate = run.Date.Format("2006-01-02")
	}
	if r.Profiles == nil {
		r.Profiles = []profile.ColumnProfile{}
	}
	for i, c := range run.Table.Columns {
		var st normalize.Stats
		if i < len(run.Stats) {
			st = run.Stats[i]
		}
		r.Cleaned = append(r.Cleaned, ColumnSummary{
			Name:           c.Name,
			Type:           c.Type,
			Missing:        c.MissingCount(),
			CoercedMissing: st.CoercedMissing,
			RescuedAsDate:  st.Rescued,
		})
	}
	return r
}
