//nolint:revive // types is a standard Go package name pattern
package types

// JobRecord is a scraped job posting as stored in the job store.
// The evaluator reads records but never modifies them.
type JobRecord struct {
	ID                    string `json:"id"`
	CompanyName           string `json:"company_name"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	Industry              string `json:"industry,omitempty"`
	RegionID              string `json:"region_id,omitempty"`
	EmploymentGrades      string `json:"employment_grades,omitempty"`
	EmploymentPositionIDs string `json:"employment_position_ids,omitempty"`
	EmploymentTypeIDs     string `json:"employment_type_ids,omitempty"`
	ExternalURL           string `json:"external_url,omitempty"`
}

// ScoredJob is one similarity-search hit.
type ScoredJob struct {
	JobID string  `json:"job_id"`
	Score float64 `json:"score"`
}
