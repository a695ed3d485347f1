//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_FieldAccessors(t *testing.T) {
	p := &UserProfile{}
	for _, f := range ProfileFields {
		require.True(t, p.SetField(f, "value-"+f))
	}
	for _, f := range ProfileFields {
		v, ok := p.Field(f)
		require.True(t, ok)
		assert.Equal(t, "value-"+f, v)
	}

	assert.False(t, p.SetField("salary", "x"))
	_, ok := p.Field("salary")
	assert.False(t, ok)
}

func TestUserProfile_IsEmpty(t *testing.T) {
	var nilProfile *UserProfile
	assert.True(t, nilProfile.IsEmpty())
	assert.True(t, (&UserProfile{Skills: "  "}).IsEmpty())
	assert.False(t, (&UserProfile{OtherInfo: "Speaks French"}).IsEmpty())
}

func TestUserProfile_CloneIsIndependent(t *testing.T) {
	p := &UserProfile{Name: "Jane Doe", Skills: "Go"}
	c := p.Clone()
	c.Skills = "Go, Rust"
	assert.Equal(t, "Go", p.Skills)

	var nilProfile *UserProfile
	assert.Nil(t, nilProfile.Clone())
}

func TestKeywordList_Normalize(t *testing.T) {
	k := &KeywordList{Keywords: []string{" Python ", "", "python", "machine learning", "  ", "SQL"}}
	k.Normalize()
	assert.Equal(t, []string{"Python", "machine learning", "SQL"}, k.Keywords)
}

func TestProfileEdit_ChangedFieldsValidation(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		fields  []string
		wantErr bool
	}{
		{name: "known fields", fields: []string{"skills", "other_info"}},
		{name: "no fields", fields: nil},
		{name: "unknown field", fields: []string{"salary"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(&ProfileEdit{ChangedFields: tt.fields})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfileSession_Accessors(t *testing.T) {
	s := &ProfileSession{Documents: []string{"cv text", "letter text"}}
	assert.Equal(t, "cv text", s.CV())
	assert.Equal(t, "letter text", s.CoverLetter())
	assert.False(t, s.HasFeedback())

	blank := "   "
	s.Feedback = &blank
	assert.False(t, s.HasFeedback())

	fb := "Add Rust"
	s.Feedback = &fb
	assert.True(t, s.HasFeedback())

	empty := &ProfileSession{}
	assert.Empty(t, empty.CV())
	assert.Empty(t, empty.CoverLetter())
}
