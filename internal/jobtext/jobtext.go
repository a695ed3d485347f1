// Package jobtext turns stored job postings into plain text for prompts and embeddings.
package jobtext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/job-matcher/internal/types"
)

// blockSelector lists the elements that end a line of text.
const blockSelector = "p, div, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, section, article, header, footer, blockquote, pre"

// FromHTML flattens an HTML fragment to text with one line per block element.
// Plain text passes through with its whitespace normalized.
func FromHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanWhitespace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanWhitespace(fragment)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return cleanWhitespace(doc.Text())
}

// EmbeddingText is the text a job is indexed under: its title followed by the
// flattened description.
func EmbeddingText(job types.JobRecord) string {
	return strings.TrimSpace(strings.TrimSpace(job.Title) + " " + FromHTML(job.Description))
}

// cleanWhitespace collapses runs of spaces and drops blank lines.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
