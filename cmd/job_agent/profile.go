package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/observability"
	"github.com/jonathan/job-matcher/internal/profile"
	"github.com/jonathan/job-matcher/internal/types"
)

const (
	promptAccept   = "Accept and save the profile"
	promptFeedback = "Give feedback"
	promptLater    = "Stop here and resume later"
)

var (
	profileUserID      string
	profileSessionID   string
	profileCVFile      string
	profileLetterFile  string
	profileInteractive bool
	profileFeedback    string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build and inspect candidate profiles",
}

var profileStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a profile session from a CV and cover letter",
	Long: `Start a profile building session. The model drafts a profile from the CV
and cover letter (or loads the stored one) and the session pauses for feedback.
With --interactive the feedback loop runs in the terminal until the profile is
accepted.`,
	RunE: runProfileStart,
}

var profileResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Send feedback to a paused session, or accept its draft",
	Long: `Resume a paused session. With --feedback the draft is revised and the
session pauses again. Without it the draft is accepted and saved.`,
	RunE: runProfileResume,
}

var profileStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a profile session",
	RunE:  runProfileStatus,
}

var profileRetryWriteCmd = &cobra.Command{
	Use:   "retry-write",
	Short: "Retry saving an accepted profile whose write failed",
	RunE:  runProfileRetryWrite,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's stored profile",
	RunE:  runProfileShow,
}

func init() {
	profileStartCmd.Flags().StringVarP(&profileUserID, "user", "u", "", "User ID (required)")
	profileStartCmd.Flags().StringVarP(&profileSessionID, "session", "s", "", "Session ID (default: random UUID)")
	profileStartCmd.Flags().StringVar(&profileCVFile, "cv", "", "Path to the CV text, - for stdin")
	profileStartCmd.Flags().StringVar(&profileLetterFile, "cover-letter", "", "Path to the cover letter text, - for stdin")
	profileStartCmd.Flags().BoolVarP(&profileInteractive, "interactive", "i", false, "Collect feedback in the terminal")
	_ = profileStartCmd.MarkFlagRequired("user")

	profileResumeCmd.Flags().StringVarP(&profileSessionID, "session", "s", "", "Session ID (required)")
	profileResumeCmd.Flags().StringVarP(&profileFeedback, "feedback", "f", "", "Feedback on the current draft")
	profileResumeCmd.Flags().BoolVarP(&profileInteractive, "interactive", "i", false, "Continue the feedback loop in the terminal")
	_ = profileResumeCmd.MarkFlagRequired("session")

	profileStatusCmd.Flags().StringVarP(&profileSessionID, "session", "s", "", "Session ID (required)")
	_ = profileStatusCmd.MarkFlagRequired("session")

	profileRetryWriteCmd.Flags().StringVarP(&profileSessionID, "session", "s", "", "Session ID (required)")
	_ = profileRetryWriteCmd.MarkFlagRequired("session")

	profileShowCmd.Flags().StringVarP(&profileUserID, "user", "u", "", "User ID (required)")
	_ = profileShowCmd.MarkFlagRequired("user")

	profileCmd.AddCommand(profileStartCmd, profileResumeCmd, profileStatusCmd, profileRetryWriteCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

// openBuilder wires a Builder whose sessions live in the local checkpoint store.
func openBuilder(ctx context.Context) (*services, *profile.Builder, error) {
	svc, err := openServices(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	cp, err := svc.localCheckpointer()
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	b, err := svc.newBuilder(cp)
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	return svc, b, nil
}

func runProfileStart(cmd *cobra.Command, _ []string) error {
	if profileCVFile == "-" && profileLetterFile == "-" {
		return fmt.Errorf("only one of --cv and --cover-letter can read stdin")
	}
	cv, err := readDocument(profileCVFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	letter, err := readDocument(profileLetterFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if cv == "" && letter == "" {
		return fmt.Errorf("a CV or a cover letter is required (--cv, --cover-letter)")
	}
	if profileSessionID == "" {
		profileSessionID = uuid.NewString()
	}

	ctx := cmd.Context()
	svc, b, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	handle, err := b.Run(ctx, [2]string{cv, letter}, profileSessionID, profileUserID)
	if err != nil {
		return err
	}
	if profileInteractive {
		handle, err = feedbackLoop(ctx, b, handle, cmd.OutOrStdout(), selectAction, promptFeedbackText)
		if err != nil {
			return err
		}
	}
	return printSession(cmd.OutOrStdout(), handle)
}

func runProfileResume(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, b, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	var handle *profile.SessionHandle
	switch {
	case cmd.Flags().Changed("feedback"):
		feedback := strings.TrimSpace(profileFeedback)
		handle, err = b.Resume(ctx, profileSessionID, &feedback)
	case profileInteractive:
		handle, err = b.Get(ctx, profileSessionID)
	default:
		handle, err = b.Resume(ctx, profileSessionID, nil)
	}
	if err != nil {
		return err
	}

	if profileInteractive {
		handle, err = feedbackLoop(ctx, b, handle, cmd.OutOrStdout(), selectAction, promptFeedbackText)
		if err != nil {
			return err
		}
	}
	return printSession(cmd.OutOrStdout(), handle)
}

func runProfileStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, b, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	handle, err := b.Get(ctx, profileSessionID)
	if err != nil {
		return err
	}
	return printSession(cmd.OutOrStdout(), handle)
}

func runProfileRetryWrite(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, b, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	handle, err := b.RetryWrite(ctx, profileSessionID)
	if err != nil {
		return err
	}
	return printSession(cmd.OutOrStdout(), handle)
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.db.GetProfileByUser(ctx, profileUserID)
	if err != nil {
		return err
	}
	if p == nil {
		return &types.ErrProfileNotFound{UserID: profileUserID}
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), p)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintProfile("STORED PROFILE", p)
	return nil
}

// sessionResumer is the part of a Builder the feedback loop drives.
type sessionResumer interface {
	Resume(ctx context.Context, sessionID string, feedback *string) (*profile.SessionHandle, error)
}

type (
	actionFunc   func() (string, error)
	feedbackFunc func() (string, error)
)

// feedbackLoop shows each draft and asks what to do with it until the session
// stops awaiting feedback or the user postpones.
func feedbackLoop(ctx context.Context, b sessionResumer, handle *profile.SessionHandle, out io.Writer, choose actionFunc, ask feedbackFunc) (*profile.SessionHandle, error) {
	printer := observability.NewPrinter(out)
	for handle.AwaitingFeedback {
		printer.PrintProfile("PROFILE DRAFT", handle.Profile)

		action, err := choose()
		if err != nil {
			return nil, err
		}

		switch action {
		case promptAccept:
			handle, err = b.Resume(ctx, handle.SessionID, nil)
		case promptFeedback:
			var text string
			if text, err = ask(); err != nil {
				return nil, err
			}
			text = strings.TrimSpace(text)
			handle, err = b.Resume(ctx, handle.SessionID, &text)
		default:
			_, _ = fmt.Fprintf(out, "Session %s saved. Continue with:\n  job_agent profile resume --session %s --interactive\n",
				handle.SessionID, handle.SessionID)
			return handle, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return handle, nil
}

func selectAction() (string, error) {
	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{promptAccept, promptFeedback, promptLater},
	}
	_, choice, err := prompt.Run()
	return choice, err
}

func promptFeedbackText() (string, error) {
	prompt := promptui.Prompt{
		Label: "Feedback",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("feedback cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

// printSession writes the session as JSON or as a status line plus the draft.
func printSession(out io.Writer, handle *profile.SessionHandle) error {
	if outputFormat == "json" {
		return writeJSON(out, handle)
	}

	_, _ = fmt.Fprintf(out, "Session: %s\nUser:    %s\nStatus:  %s\n", handle.SessionID, handle.UserID, sessionState(handle))
	if handle.Error != "" {
		_, _ = fmt.Fprintf(out, "Error:   %s\n", handle.Error)
	}
	if handle.WriteError != "" {
		_, _ = fmt.Fprintf(out, "Write error: %s\nRetry with: job_agent profile retry-write --session %s\n", handle.WriteError, handle.SessionID)
	}
	observability.NewPrinter(out).PrintProfile("PROFILE", handle.Profile)
	return nil
}

func sessionState(h *profile.SessionHandle) string {
	switch {
	case h.AwaitingFeedback:
		return "awaiting feedback"
	case h.Completed && h.Written:
		return "completed, profile saved"
	case h.Completed:
		return "completed, profile not saved"
	default:
		return string(h.Status)
	}
}
