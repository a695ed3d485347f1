package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func noop(context.Context, *reviewState) error { return nil }

func TestGraph_Validate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph[reviewState]
		wantErr string
	}{
		{
			name:  "valid graph",
			build: func() *Graph[reviewState] { return buildReviewGraph(nil) },
		},
		{
			name: "missing entry",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).AddEdge("a", End)
			},
			wantErr: "entry node",
		},
		{
			name: "node without outgoing edge",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a")
			},
			wantErr: "no outgoing edge",
		},
		{
			name: "edge and router on one node",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").
					AddEdge("a", End).
					AddConditionalEdge("a", func(*reviewState) string { return End }, End)
			},
			wantErr: "both an edge and a router",
		},
		{
			name: "edge to unknown node",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").AddEdge("a", "b")
			},
			wantErr: "unknown node",
		},
		{
			name: "router without targets",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").
					AddConditionalEdge("a", func(*reviewState) string { return End })
			},
			wantErr: "declares no targets",
		},
		{
			name: "edge from unknown node",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").
					AddEdge("a", End).AddEdge("ghost", "a")
			},
			wantErr: "edge from unknown node",
		},
		{
			name: "interrupt on unknown node",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").
					AddEdge("a", End).InterruptBefore("ghost")
			},
			wantErr: "interrupt on unknown node",
		},
		{
			name: "reserved node name",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("g").AddNode("a", noop).SetEntry("a").
					AddEdge("a", End).AddNode(End, noop)
			},
			wantErr: "reserved",
		},
		{
			name: "empty name",
			build: func() *Graph[reviewState] {
				return NewGraph[reviewState]("").AddNode("a", noop).SetEntry("a").AddEdge("a", End)
			},
			wantErr: "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGraph_Nodes(t *testing.T) {
	g := buildReviewGraph(nil)
	assert.Equal(t, "review", g.Name())
	assert.Equal(t, []string{"draft", "review", "revise"}, g.Nodes())
}
