// Package profile implements the profile builder: a resumable conversation that
// synthesizes a UserProfile from a CV and cover letter, refines it through rounds
// of user feedback and finally stores it.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
)

// GraphName namespaces profile builder checkpoints.
const GraphName = "profile_builder"

// Node names.
const (
	NodeCheckExisting = "CheckExisting"
	NodeCreateProfile = "CreateProfile"
	NodeHumanFeedback = "HumanFeedback"
	NodeEditProfile   = "EditProfile"
	NodeWriteProfile  = "WriteProfile"
)

// ProfileStore reads and writes finalized profiles.
type ProfileStore interface {
	// GetProfileByUser returns nil, nil when the user has no profile.
	GetProfileByUser(ctx context.Context, userID string) (*types.UserProfile, error)
	// UpsertProfile stores the profile atomically with the user lookup.
	UpsertProfile(ctx context.Context, userID string, profile *types.UserProfile) error
}

// Options configures a Builder.
type Options struct {
	Logger *zap.Logger
	// Checkpointer persists sessions. Defaults to an in-memory store.
	Checkpointer pipeline.Checkpointer
	// StrictGrounding fails synthesis when the profile contains terms absent
	// from the inputs. Otherwise such terms are only logged.
	StrictGrounding bool
	// FallbackOnLookupError treats a failed profile lookup as "not found" and
	// creates a new profile instead of failing the session.
	FallbackOnLookupError bool
}

// SessionHandle is what callers see of a session.
type SessionHandle struct {
	SessionID        string             `json:"session_id"`
	UserID           string             `json:"user_id"`
	Profile          *types.UserProfile `json:"profile,omitempty"`
	AwaitingFeedback bool               `json:"awaiting_feedback"`
	Completed        bool               `json:"completed"`
	Status           pipeline.Status    `json:"status"`
	Written          bool               `json:"written"`
	WriteError       string             `json:"write_error,omitempty"`
	Error            string             `json:"error,omitempty"`
}

// Builder runs profile building sessions.
type Builder struct {
	llm    llm.Client
	store  ProfileStore
	opts   Options
	logger *zap.Logger
	runner *pipeline.Runnable[types.ProfileSession]
}

type startInput struct {
	SessionID   string `validate:"required"`
	UserID      string `validate:"required"`
	CV          string `validate:"required_without=CoverLetter"`
	CoverLetter string `validate:"required_without=CV"`
}

var validate = validator.New()

// New creates a Builder and compiles its state machine.
func New(client llm.Client, store ProfileStore, opts Options) (*Builder, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = pipeline.NewMemoryCheckpointer()
	}

	b := &Builder{
		llm:    client,
		store:  store,
		opts:   opts,
		logger: logger.OrNop(opts.Logger),
	}

	g := pipeline.NewGraph[types.ProfileSession](GraphName).
		AddNode(NodeCheckExisting, b.checkExisting).
		AddNode(NodeCreateProfile, b.createProfile).
		AddNode(NodeHumanFeedback, humanFeedback).
		AddNode(NodeEditProfile, b.editProfile).
		AddNode(NodeWriteProfile, b.writeProfile).
		SetEntry(NodeCheckExisting).
		AddConditionalEdge(NodeCheckExisting, routeAfterCheck, NodeCreateProfile, NodeHumanFeedback).
		AddEdge(NodeCreateProfile, NodeHumanFeedback).
		AddEdge(NodeHumanFeedback, NodeEditProfile).
		AddConditionalEdge(NodeEditProfile, routeAfterEdit, NodeHumanFeedback, NodeWriteProfile).
		AddEdge(NodeWriteProfile, pipeline.End).
		InterruptBefore(NodeHumanFeedback)

	runner, err := g.Compile(opts.Checkpointer, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile profile builder: %w", err)
	}
	b.runner = runner
	return b, nil
}

// Run starts a new session from a CV and a cover letter. Either document may be
// empty, but not both. It returns once the first draft awaits feedback.
func (b *Builder) Run(ctx context.Context, documents [2]string, sessionID, userID string) (*SessionHandle, error) {
	in := startInput{
		SessionID:   strings.TrimSpace(sessionID),
		UserID:      strings.TrimSpace(userID),
		CV:          strings.TrimSpace(documents[0]),
		CoverLetter: strings.TrimSpace(documents[1]),
	}
	if err := validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("invalid profile session input: %w", err)
	}

	b.logger.Info("starting profile session",
		zap.String(logger.FieldSessionID, in.SessionID),
		zap.String(logger.FieldUserID, in.UserID))

	snap, err := b.runner.Invoke(ctx, in.SessionID, types.ProfileSession{
		SessionID: in.SessionID,
		UserID:    in.UserID,
		Documents: []string{documents[0], documents[1]},
	})
	if err != nil {
		return nil, err
	}
	return handleFrom(snap), nil
}

// Resume continues a suspended session with the user's feedback. Nil or blank
// feedback accepts the current profile and writes it. A session that failed is
// retried from the failed step with its pending feedback, and a completed
// session is returned unchanged.
func (b *Builder) Resume(ctx context.Context, sessionID string, feedback *string) (*SessionHandle, error) {
	current, err := b.runner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var update func(*types.ProfileSession)
	if current.Interrupted() {
		update = func(s *types.ProfileSession) {
			s.Feedback = feedback
			if s.HasFeedback() {
				s.FeedbackHistory = append(s.FeedbackHistory, *feedback)
			}
		}
	}

	b.logger.Info("resuming profile session",
		zap.String(logger.FieldSessionID, sessionID),
		zap.Bool("has_feedback", feedback != nil && strings.TrimSpace(*feedback) != ""),
		zap.String("status", string(current.Status)))

	snap, err := b.runner.Resume(ctx, sessionID, update)
	if err != nil {
		return nil, err
	}
	return handleFrom(snap), nil
}

// Get returns the session's current snapshot.
func (b *Builder) Get(ctx context.Context, sessionID string) (*SessionHandle, error) {
	snap, err := b.runner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return handleFrom(snap), nil
}

// ErrNothingToRetry is returned by RetryWrite when the session's profile was
// written or the session has not reached the write step.
var ErrNothingToRetry = errors.New("session has no failed write to retry")

// RetryWrite re-attempts storing the profile of a completed session whose write failed.
func (b *Builder) RetryWrite(ctx context.Context, sessionID string) (*SessionHandle, error) {
	current, err := b.runner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status != pipeline.StatusCompleted || current.State.Written {
		return nil, ErrNothingToRetry
	}

	snap, err := b.runner.RunFrom(ctx, sessionID, NodeWriteProfile, func(s *types.ProfileSession) {
		s.WriteError = ""
	})
	if err != nil {
		return nil, err
	}
	return handleFrom(snap), nil
}

func handleFrom(snap *pipeline.Snapshot[types.ProfileSession]) *SessionHandle {
	return &SessionHandle{
		SessionID:        snap.ThreadID,
		UserID:           snap.State.UserID,
		Profile:          snap.State.Profile.Clone(),
		AwaitingFeedback: snap.Interrupted(),
		Completed:        snap.Status == pipeline.StatusCompleted,
		Status:           snap.Status,
		Written:          snap.State.Written,
		WriteError:       snap.State.WriteError,
		Error:            snap.Error,
	}
}

func routeAfterCheck(s *types.ProfileSession) string {
	if s.Profile != nil {
		return NodeHumanFeedback
	}
	return NodeCreateProfile
}

func routeAfterEdit(s *types.ProfileSession) string {
	if s.HasFeedback() {
		return NodeHumanFeedback
	}
	return NodeWriteProfile
}

// humanFeedback marks the suspension point. Feedback is injected by Resume.
func humanFeedback(context.Context, *types.ProfileSession) error {
	return nil
}
