package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/prompts"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/schemas"
)

func (b *Builder) sessionLogger(s *types.ProfileSession, node string) *zap.Logger {
	return b.logger.With(
		zap.String(logger.FieldSessionID, s.SessionID),
		zap.String(logger.FieldUserID, s.UserID),
		zap.String(logger.FieldNode, node),
	)
}

func (b *Builder) checkExisting(ctx context.Context, s *types.ProfileSession) error {
	log := b.sessionLogger(s, NodeCheckExisting)

	existing, err := b.store.GetProfileByUser(ctx, s.UserID)
	if err != nil {
		if !b.opts.FallbackOnLookupError {
			return fmt.Errorf("failed to look up profile: %w", err)
		}
		log.Warn("profile lookup failed, creating a new profile", zap.Error(err))
		s.Profile = nil
		return nil
	}

	if existing == nil {
		log.Info("no stored profile, creating one")
		s.Profile = nil
		return nil
	}

	log.Info("found stored profile")
	s.Profile = existing.Clone()
	return nil
}

func (b *Builder) createProfile(ctx context.Context, s *types.ProfileSession) error {
	log := b.sessionLogger(s, NodeCreateProfile)
	feedback := strings.Join(s.FeedbackHistory, "\n")

	system, err := prompts.Render(prompts.ProfileFile, "create-profile-system", map[string]string{
		"CV":          s.CV(),
		"CoverLetter": s.CoverLetter(),
		"Feedback":    feedback,
	})
	if err != nil {
		return err
	}
	user, err := prompts.Get(prompts.ProfileFile, "create-profile-user")
	if err != nil {
		return err
	}

	profile, err := llm.InvokeStructured[types.UserProfile](ctx, b.llm, llm.StructuredRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schemas.UserProfile,
		Tier:         llm.TierAdvanced,
	})
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := b.checkGrounding(log, profile, s.CV(), s.CoverLetter(), feedback); err != nil {
		return err
	}

	s.Profile = profile
	log.Info("profile created", zap.Bool("empty", profile.IsEmpty()))
	return nil
}

func (b *Builder) editProfile(ctx context.Context, s *types.ProfileSession) error {
	log := b.sessionLogger(s, NodeEditProfile)
	if !s.HasFeedback() {
		log.Debug("no feedback, keeping profile")
		return nil
	}

	current := s.Profile.Clone()
	if current == nil {
		current = &types.UserProfile{}
	}
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	feedback := *s.Feedback
	system, err := prompts.Render(prompts.ProfileFile, "edit-profile-system", map[string]string{
		"Profile":     string(currentJSON),
		"Feedback":    feedback,
		"CV":          s.CV(),
		"CoverLetter": s.CoverLetter(),
	})
	if err != nil {
		return err
	}
	user, err := prompts.Get(prompts.ProfileFile, "edit-profile-user")
	if err != nil {
		return err
	}

	edit, err := llm.InvokeStructured[types.ProfileEdit](ctx, b.llm, llm.StructuredRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Schema:       schemas.ProfileEdit,
		Tier:         llm.TierAdvanced,
	})
	if err != nil {
		return fmt.Errorf("failed to edit profile: %w", err)
	}

	updated := ApplyEdit(current, edit)
	if err := b.checkGrounding(log, updated, current.String(), feedback, s.CV(), s.CoverLetter()); err != nil {
		return err
	}

	s.Profile = updated
	log.Info("profile edited", zap.Strings("changed_fields", edit.ChangedFields))
	return nil
}

func (b *Builder) writeProfile(ctx context.Context, s *types.ProfileSession) error {
	log := b.sessionLogger(s, NodeWriteProfile)

	if s.Profile == nil {
		s.Written = false
		s.WriteError = "no profile to write"
		log.Error("no profile to write")
		return nil
	}

	if err := b.store.UpsertProfile(ctx, s.UserID, s.Profile); err != nil {
		s.Written = false
		s.WriteError = err.Error()
		log.Error("failed to write profile", zap.Error(err))
		return nil
	}

	s.Written = true
	s.WriteError = ""
	log.Info("profile written")
	return nil
}

// ApplyEdit returns base with only the fields named in edit.ChangedFields taken
// from the edited profile. Every other field is copied from base unchanged.
func ApplyEdit(base *types.UserProfile, edit *types.ProfileEdit) *types.UserProfile {
	out := base.Clone()
	if out == nil {
		out = &types.UserProfile{}
	}
	if edit == nil {
		return out
	}
	for _, field := range edit.ChangedFields {
		if v, ok := edit.Profile.Field(field); ok {
			out.SetField(field, v)
		}
	}
	return out
}

func (b *Builder) checkGrounding(log *zap.Logger, profile *types.UserProfile, sources ...string) error {
	ungrounded := GroundingCheck(profile, sources...)
	if len(ungrounded) == 0 {
		return nil
	}
	log.Warn("profile contains terms not found in the inputs", zap.Strings("terms", ungrounded))
	if b.opts.StrictGrounding {
		return &llm.ValidationError{Schema: schemas.UserProfile, Cause: &GroundingError{Terms: ungrounded}}
	}
	return nil
}
