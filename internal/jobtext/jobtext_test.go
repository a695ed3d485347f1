package jobtext

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-matcher/internal/types"
)

func TestFromHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text is normalized",
			in:   "  Backend   engineer\n\n\n  Go and Postgres ",
			want: "Backend engineer\nGo and Postgres",
		},
		{
			name: "paragraphs and list items become lines",
			in:   "<p>We are hiring.</p><ul><li>Go</li><li>Kubernetes</li></ul>",
			want: "We are hiring.\nGo\nKubernetes",
		},
		{
			name: "line breaks and entities",
			in:   "Salary &amp; benefits<br>Remote &gt; office",
			want: "Salary & benefits\nRemote > office",
		},
		{
			name: "scripts and styles are dropped",
			in:   "<style>p{color:red}</style><p>Role</p><script>track()</script>",
			want: "Role",
		},
		{
			name: "inline markup stays on one line",
			in:   "<p>Work with <b>Go</b> and <i>gRPC</i></p>",
			want: "Work with Go and gRPC",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHTML(tt.in))
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	job := types.JobRecord{
		ID:          "job1",
		Title:       " Data Engineer ",
		Description: "<p>Build pipelines</p>",
	}
	assert.Equal(t, "Data Engineer Build pipelines", EmbeddingText(job))

	assert.Equal(t, "Analyst", EmbeddingText(types.JobRecord{Title: "Analyst"}))
}
