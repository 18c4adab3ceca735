package models

import "time"

// Person is the read model the scan loads for every person in the
// population. The typed columns feed the sex and age matchers; everything
// the n-gram groups compare lives in the Data document and is pulled out by
// field path.
type Person struct {
	ID               string         `json:"id" db:"id"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty" db:"updated_at"`
	Sex              *string        `json:"sex,omitempty" db:"sex"`
	DOB              *time.Time     `json:"dob,omitempty" db:"dob"`
	DOBPrecisionDays *int           `json:"dob_precision_days,omitempty" db:"dob_precision_days"`
	Data             map[string]any `json:"data" db:"data"`
}

// UpdatedSince reports whether the person changed after the given time. A
// person with no recorded update time counts as changed, so new rows are
// always picked up by incremental scans.
func (p *Person) UpdatedSince(t time.Time) bool {
	if p.UpdatedAt == nil {
		return true
	}
	return p.UpdatedAt.After(t)
}
