package pipeline

import "context"

// Progress event statuses.
const (
	EventStarted       = "started"
	EventCompleted     = "completed"
	EventFailed        = "failed"
	EventInterrupted   = "interrupted"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Graph    string `json:"graph"`
	ThreadID string `json:"thread_id"`
	Step     string `json:"step"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when run progress occurs. Fan-out tasks call it
// concurrently, so implementations must be safe for concurrent use.
type ProgressCallback func(event ProgressEvent)

type progressKey struct{}

type runInfoKey struct{}

type runInfo struct {
	graph    string
	threadID string
}

// WithProgress returns a context whose runs report progress to cb.
func WithProgress(ctx context.Context, cb ProgressCallback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

func withRunInfo(ctx context.Context, graph, threadID string) context.Context {
	return context.WithValue(ctx, runInfoKey{}, runInfo{graph: graph, threadID: threadID})
}

// Emit sends an event to the context's progress callback, if any. Graph and
// thread are filled in from the running graph.
func Emit(ctx context.Context, event ProgressEvent) {
	cb, _ := ctx.Value(progressKey{}).(ProgressCallback)
	if cb == nil {
		return
	}
	if info, ok := ctx.Value(runInfoKey{}).(runInfo); ok {
		if event.Graph == "" {
			event.Graph = info.graph
		}
		if event.ThreadID == "" {
			event.ThreadID = info.threadID
		}
	}
	cb(event)
}
