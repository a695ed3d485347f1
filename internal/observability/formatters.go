// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/job-matcher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

var fieldLabels = map[string]string{
	types.FieldName:           "Name",
	types.FieldWorkExperience: "Work experience",
	types.FieldSkills:         "Skills",
	types.FieldEducation:      "Education",
	types.FieldCertifications: "Certifications",
	types.FieldOtherInfo:      "Other",
}

// Printer handles formatted output for the CLI
type Printer struct {
	out   io.Writer
	limit int
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, limit: maxItemsToShow}
}

// WithLimit sets how many list items are shown. Zero or less shows all.
func (p *Printer) WithLimit(n int) *Printer {
	p.limit = n
	return p
}

// printBox prints a formatted box with a title and content. Long lines wrap.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, part := range wrap(line, boxWidth-4) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(part))
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProfile outputs every non-empty profile field.
func (p *Printer) PrintProfile(title string, profile *types.UserProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	for _, name := range types.ProfileFields {
		value, _ := profile.Field(name)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fieldLabels[name] + ":\n")
		for _, line := range strings.Split(value, "\n") {
			sb.WriteString("  " + strings.TrimSpace(line) + "\n")
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("(empty profile)")
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRankedJobs outputs ranked evaluations best first, followed by failed jobs.
func (p *Printer) PrintRankedJobs(jobs []types.RankedJob, failures []types.TaskFailure) {
	if len(jobs) == 0 && len(failures) == 0 {
		p.printBox("JOB MATCHES", "No jobs were evaluated.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Evaluated %d jobs", len(jobs)))
	if len(failures) > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", len(failures)))
	}
	sb.WriteString("\n")

	count := p.count(len(jobs))
	for i := 0; i < count; i++ {
		j := jobs[i]
		sb.WriteString(fmt.Sprintf("\n#%d  [%3d]  %s\n", i+1, j.FitScore, jobLabel(j.Title, j.CompanyName, j.JobID)))
		if j.ExternalURL != "" {
			sb.WriteString(fmt.Sprintf("     %s\n", j.ExternalURL))
		}
		sb.WriteString(fmt.Sprintf("     %s\n", oneLine(j.Rationale)))
	}
	if len(jobs) > count {
		sb.WriteString(fmt.Sprintf("\n... and %d more jobs\n", len(jobs)-count))
	}

	if len(failures) > 0 {
		sb.WriteString("\nFailed:\n")
		for _, f := range failures {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", f.JobID, oneLine(f.Error)))
		}
	}

	p.printBox("JOB MATCHES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStoredEvaluations outputs saved evaluations with their user ratings.
func (p *Printer) PrintStoredEvaluations(evals []types.StoredEvaluation) {
	if len(evals) == 0 {
		p.printBox("SAVED EVALUATIONS", "No saved evaluations.")
		return
	}

	var sb strings.Builder
	count := p.count(len(evals))
	for i := 0; i < count; i++ {
		e := evals[i]
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[%3d]  %s\n", e.FitScore, jobLabel(e.Title, e.CompanyName, e.JobID)))
		sb.WriteString(fmt.Sprintf("       id: %s\n", e.ID))
		if e.UserScore != nil {
			sb.WriteString(fmt.Sprintf("       rated %d", *e.UserScore))
			if e.UserFeedback != nil && *e.UserFeedback != "" {
				sb.WriteString(": " + oneLine(*e.UserFeedback))
			}
			sb.WriteString("\n")
		}
	}
	if len(evals) > count {
		sb.WriteString(fmt.Sprintf("\n... and %d more evaluations\n", len(evals)-count))
	}

	p.printBox("SAVED EVALUATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

func (p *Printer) count(n int) int {
	if p.limit <= 0 {
		return n
	}
	return min(n, p.limit)
}

func jobLabel(title, company, id string) string {
	switch {
	case title != "" && company != "":
		return title + " @ " + company
	case title != "":
		return title
	default:
		return id
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func pad(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= boxWidth-4 {
		return s
	}
	return s + strings.Repeat(" ", boxWidth-4-n)
}

// wrap splits a line on word boundaries into parts no wider than width runes.
// Words longer than width are cut.
func wrap(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}

	indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
	if len(indent) >= width/2 {
		indent = ""
	}
	var (
		parts   []string
		current = indent
	)
	for _, word := range strings.Fields(line) {
		for utf8.RuneCountInString(indent+word) > width {
			if strings.TrimSpace(current) != "" {
				parts = append(parts, current)
				current = indent
			}
			r := []rune(word)
			cut := width - utf8.RuneCountInString(indent)
			parts = append(parts, indent+string(r[:cut]))
			word = string(r[cut:])
		}
		switch {
		case strings.TrimSpace(current) == "":
			current = indent + word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			parts = append(parts, current)
			current = indent + word
		}
	}
	if strings.TrimSpace(current) != "" {
		parts = append(parts, current)
	}
	return parts
}
