// Package types provides type definitions for structured data used throughout the job-matcher system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// Profile field names, as they appear in JSON and in edit responses.
const (
	FieldName           = "name"
	FieldWorkExperience = "work_experience"
	FieldSkills         = "skills"
	FieldEducation      = "education"
	FieldCertifications = "certifications"
	FieldOtherInfo      = "other_info"
)

// ProfileFields lists every UserProfile field in display order.
var ProfileFields = []string{
	FieldName,
	FieldWorkExperience,
	FieldSkills,
	FieldEducation,
	FieldCertifications,
	FieldOtherInfo,
}

// UserProfile is the structured candidate profile synthesized from a CV and cover letter.
// Any field may be empty when the source documents do not support it.
type UserProfile struct {
	Name           string `json:"name"`
	WorkExperience string `json:"work_experience"`
	Skills         string `json:"skills"`
	Education      string `json:"education"`
	Certifications string `json:"certifications"`
	OtherInfo      string `json:"other_info"`
}

// Field returns the value of the named field and whether the name is known.
func (p *UserProfile) Field(name string) (string, bool) {
	switch name {
	case FieldName:
		return p.Name, true
	case FieldWorkExperience:
		return p.WorkExperience, true
	case FieldSkills:
		return p.Skills, true
	case FieldEducation:
		return p.Education, true
	case FieldCertifications:
		return p.Certifications, true
	case FieldOtherInfo:
		return p.OtherInfo, true
	default:
		return "", false
	}
}

// SetField sets the named field. It reports false for unknown names.
func (p *UserProfile) SetField(name, value string) bool {
	switch name {
	case FieldName:
		p.Name = value
	case FieldWorkExperience:
		p.WorkExperience = value
	case FieldSkills:
		p.Skills = value
	case FieldEducation:
		p.Education = value
	case FieldCertifications:
		p.Certifications = value
	case FieldOtherInfo:
		p.OtherInfo = value
	default:
		return false
	}
	return true
}

// IsEmpty reports whether every field is blank.
func (p *UserProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, f := range ProfileFields {
		if v, _ := p.Field(f); strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Clone returns a copy of the profile. A nil profile clones to nil.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// String renders the profile as labelled sections for use inside prompts.
func (p *UserProfile) String() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Name: " + p.Name + "\n")
	sb.WriteString("Work experience: " + p.WorkExperience + "\n")
	sb.WriteString("Skills: " + p.Skills + "\n")
	sb.WriteString("Education: " + p.Education + "\n")
	sb.WriteString("Certifications: " + p.Certifications + "\n")
	sb.WriteString("Other information: " + p.OtherInfo)
	return sb.String()
}

// ProfileEdit is the model response for a feedback-driven edit.
// Only fields listed in ChangedFields are applied to the existing profile.
type ProfileEdit struct {
	Profile       UserProfile `json:"profile"`
	ChangedFields []string    `json:"changed_fields" validate:"dive,oneof=name work_experience skills education certifications other_info"`
}

// KeywordList is the compact retrieval query extracted from a profile.
type KeywordList struct {
	Keywords []string `json:"keywords"`
}

// Normalize trims keywords, drops blanks and removes case-insensitive duplicates,
// keeping the first occurrence.
func (k *KeywordList) Normalize() {
	if k == nil {
		return
	}
	seen := make(map[string]bool, len(k.Keywords))
	out := make([]string, 0, len(k.Keywords))
	for _, kw := range k.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	k.Keywords = out
}

// ProfileSession is the resumable state of one profile-building conversation.
type ProfileSession struct {
	SessionID       string       `json:"session_id"`
	UserID          string       `json:"user_id"`
	Documents       []string     `json:"documents"`
	Profile         *UserProfile `json:"profile,omitempty"`
	Feedback        *string      `json:"feedback,omitempty"`
	FeedbackHistory []string     `json:"feedback_history,omitempty"`
	Written         bool         `json:"written"`
	WriteError      string       `json:"write_error,omitempty"`
}

// CV returns the first input document.
func (s *ProfileSession) CV() string {
	if len(s.Documents) > 0 {
		return s.Documents[0]
	}
	return ""
}

// CoverLetter returns the second input document.
func (s *ProfileSession) CoverLetter() string {
	if len(s.Documents) > 1 {
		return s.Documents[1]
	}
	return ""
}

// HasFeedback reports whether the latest feedback carries any text.
func (s *ProfileSession) HasFeedback() bool {
	return s.Feedback != nil && strings.TrimSpace(*s.Feedback) != ""
}
