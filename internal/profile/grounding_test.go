package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-matcher/internal/types"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "Go, Python & Rust", want: []string{"go", "python", "rust"}},
		{in: "BSc (2019)", want: []string{"bsc", "2019"}},
		{in: "Zürich-based", want: []string{"zürich", "based"}},
		{in: "  ", want: []string{}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGroundingCheck(t *testing.T) {
	sources := []string{"Jane Doe knows Go and Python.", "Feedback: add Rust"}

	tests := []struct {
		name    string
		profile *types.UserProfile
		want    []string
	}{
		{
			name:    "closed vocabulary",
			profile: &types.UserProfile{Name: "Jane Doe", Skills: "Go, Python, Rust"},
		},
		{
			name:    "case and punctuation are ignored",
			profile: &types.UserProfile{Name: "JANE doe!", Skills: "go; python"},
		},
		{
			name:    "fabricated terms are reported once, sorted",
			profile: &types.UserProfile{Skills: "Go, Kubernetes", OtherInfo: "Kubernetes at ABC"},
			want:    []string{"abc", "at", "kubernetes"},
		},
		{
			name:    "empty profile is grounded",
			profile: &types.UserProfile{},
		},
		{
			name: "nil profile is grounded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroundingCheck(tt.profile, sources...)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyEdit_PreservesUnchangedFields(t *testing.T) {
	base := &types.UserProfile{
		Name:           "Jane Doe",
		WorkExperience: "Engineer at Acme",
		Skills:         "Go",
		Education:      "BSc",
		Certifications: "",
		OtherInfo:      "remote",
	}
	edit := &types.ProfileEdit{
		Profile: types.UserProfile{
			Name:      "Janet",
			Skills:    "Go, Rust",
			OtherInfo: "",
		},
		ChangedFields: []string{types.FieldSkills},
	}

	got := ApplyEdit(base, edit)

	assert.Equal(t, "Go, Rust", got.Skills)
	for _, f := range types.ProfileFields {
		if f == types.FieldSkills {
			continue
		}
		want, _ := base.Field(f)
		have, _ := got.Field(f)
		assert.Equal(t, want, have, f)
	}
	assert.Equal(t, "Go", base.Skills, "base is not modified")
}

func TestApplyEdit_NilInputs(t *testing.T) {
	assert.Equal(t, &types.UserProfile{}, ApplyEdit(nil, nil))
	base := &types.UserProfile{Name: "Jane"}
	assert.Equal(t, base, ApplyEdit(base, nil))
}
