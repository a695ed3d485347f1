package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(ProfileFile, "create-profile-system")
	require.NoError(t, err)
	assert.Contains(t, prompt, "do not invent anything")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(EvaluationFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}!"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", Format(template, data))
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	assert.Equal(t, template, Format(template, map[string]string{}))
}

func TestFormat_ValuesAreNotExpanded(t *testing.T) {
	out := Format("A={{.A}} B={{.B}}", map[string]string{"A": "{{.B}}", "B": "b"})
	assert.Equal(t, "A={{.B}} B=b", out)
}

func TestRender_MissingValue(t *testing.T) {
	ClearCache()

	_, err := Render(EvaluationFile, "extract-keywords-system", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Profile")
}

// Every template must render with the values its caller supplies.
func TestRender_AllTemplates(t *testing.T) {
	ClearCache()

	tests := []struct {
		file string
		key  string
		data map[string]string
	}{
		{ProfileFile, "create-profile-system", map[string]string{"CV": "cv", "CoverLetter": "cl", "Feedback": ""}},
		{ProfileFile, "create-profile-user", nil},
		{ProfileFile, "edit-profile-system", map[string]string{"Profile": "{}", "Feedback": "f", "CV": "cv", "CoverLetter": "cl"}},
		{ProfileFile, "edit-profile-user", nil},
		{EvaluationFile, "extract-keywords-system", map[string]string{"Profile": "p"}},
		{EvaluationFile, "extract-keywords-user", nil},
		{EvaluationFile, "evaluate-fit-system", map[string]string{
			"CompanyName": "Acme", "Profile": "p", "JobID": "job1", "JobTitle": "Engineer", "JobDescription": "Build things",
		}},
		{EvaluationFile, "evaluate-fit-user", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out, err := Render(tt.file, tt.key, tt.data)
			require.NoError(t, err)
			assert.NotContains(t, out, "{{.")
		})
	}
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(EvaluationFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"evaluate-fit-system", "evaluate-fit-user", "extract-keywords-system", "extract-keywords-user"}, keys)
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get(ProfileFile, "edit-profile-system")
	require.NoError(t, err)

	prompt2, err := Get(ProfileFile, "edit-profile-system")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
