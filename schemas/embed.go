// Package schemas holds the JSON Schema documents that structured model output
// and job import files are validated against.
package schemas

import "embed"

// Schema names, without the .schema.json suffix.
const (
	UserProfile   = "user_profile"
	ProfileEdit   = "profile_edit"
	KeywordList   = "keyword_list"
	JobEvaluation = "job_evaluation"
	JobRecord     = "job_record"
)

//go:embed *.schema.json
var FS embed.FS

// Filename returns the embedded file name for a schema name.
func Filename(name string) string {
	return name + ".schema.json"
}
