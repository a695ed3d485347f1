package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/evaluator"
	"github.com/jonathan/job-matcher/internal/observability"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	evalUserID   string
	evalRunID    string
	evalSave     bool
	evalTopK     int
	evalLimit    int
	evalProgress bool

	rateEvaluationID string
	rateRunID        string
	rateScore        int
	rateFeedback     string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Rank the job corpus against a user's stored profile",
	Long: `Evaluate the jobs nearest to the user's profile. The profile is turned into
search keywords, the closest jobs are retrieved from the vector index and each
is scored for fit by the model. Results are printed best first.`,
	RunE: runEvaluate,
}

var evaluateRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Continue a failed evaluation run from the stage that failed",
	RunE:  runEvaluateRetry,
}

var evaluateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List a user's saved evaluations",
	RunE:  runEvaluateHistory,
}

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Record your own 0-5 rating of a saved evaluation or a whole run",
	RunE:  runRate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalUserID, "user", "u", "", "User ID (required)")
	evaluateCmd.Flags().StringVar(&evalRunID, "run", "", "Run ID (default: random UUID)")
	evaluateCmd.Flags().BoolVar(&evalSave, "save", false, "Save the evaluations")
	evaluateCmd.Flags().IntVarP(&evalTopK, "top-k", "k", 0, "Jobs retrieved per keyword (overrides evaluator.top_k)")
	evaluateCmd.Flags().IntVarP(&evalLimit, "limit", "n", 10, "Number of results to print, 0 for all")
	evaluateCmd.Flags().BoolVar(&evalProgress, "progress", false, "Print pipeline progress to stderr")
	_ = evaluateCmd.MarkFlagRequired("user")

	evaluateRetryCmd.Flags().StringVar(&evalRunID, "run", "", "Run ID (required)")
	evaluateRetryCmd.Flags().BoolVar(&evalSave, "save", false, "Save the evaluations")
	evaluateRetryCmd.Flags().IntVarP(&evalLimit, "limit", "n", 10, "Number of results to print, 0 for all")
	_ = evaluateRetryCmd.MarkFlagRequired("run")

	evaluateHistoryCmd.Flags().StringVarP(&evalUserID, "user", "u", "", "User ID (required)")
	evaluateHistoryCmd.Flags().IntVarP(&evalLimit, "limit", "n", 0, "Number of evaluations to print, 0 for all")
	_ = evaluateHistoryCmd.MarkFlagRequired("user")

	rateCmd.Flags().StringVarP(&rateEvaluationID, "evaluation", "e", "", "Saved evaluation ID")
	rateCmd.Flags().StringVar(&rateRunID, "run", "", "Evaluation run ID")
	rateCmd.Flags().IntVarP(&rateScore, "score", "s", 0, "Your rating, 0 to 5 (required)")
	rateCmd.Flags().StringVarP(&rateFeedback, "feedback", "f", "", "Free-text feedback")
	rateCmd.MarkFlagsOneRequired("evaluation", "run")
	rateCmd.MarkFlagsMutuallyExclusive("evaluation", "run")
	_ = rateCmd.MarkFlagRequired("score")

	evaluateCmd.AddCommand(evaluateRetryCmd, evaluateHistoryCmd)
	rootCmd.AddCommand(evaluateCmd, rateCmd)
}

func openEvaluator(ctx context.Context) (*services, *evaluator.Evaluator, error) {
	svc, err := openServices(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	cp, err := svc.localCheckpointer()
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	if evalTopK > 0 {
		appConfig.Evaluator.TopK = evalTopK
	}
	e, err := svc.newEvaluator(cp)
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	return svc, e, nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, e, err := openEvaluator(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if evalRunID == "" {
		evalRunID = uuid.NewString()
	}
	if evalProgress {
		ctx = pipeline.WithProgress(ctx, progressPrinter(cmd.ErrOrStderr()))
	}

	state, err := e.RunWithID(ctx, evalRunID, evalUserID)
	if err != nil {
		return fmt.Errorf("%w (retry with: job_agent evaluate retry --run %s)", err, evalRunID)
	}
	return finishEvaluation(ctx, cmd.OutOrStdout(), e, state)
}

func runEvaluateRetry(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, e, err := openEvaluator(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	state, err := e.Retry(ctx, evalRunID)
	if err != nil {
		return err
	}
	return finishEvaluation(ctx, cmd.OutOrStdout(), e, state)
}

// resultSaver is the part of an Evaluator finishEvaluation needs.
type resultSaver interface {
	SaveResults(ctx context.Context, state *types.MultiJobEvaluationState) ([]types.StoredEvaluation, error)
}

// evaluationOutput is the JSON form of a finished run.
type evaluationOutput struct {
	RunID    string                   `json:"run_id"`
	UserID   string                   `json:"user_id"`
	Results  []types.RankedJob        `json:"results"`
	Failures []types.TaskFailure      `json:"failures,omitempty"`
	Saved    []types.StoredEvaluation `json:"saved,omitempty"`
}

func finishEvaluation(ctx context.Context, out io.Writer, saver resultSaver, state *types.MultiJobEvaluationState) error {
	result := evaluationOutput{
		RunID:    state.RunID,
		UserID:   state.UserID,
		Results:  state.RankedJobs(),
		Failures: state.Failures,
	}
	if evalSave {
		saved, err := saver.SaveResults(ctx, state)
		if err != nil {
			return err
		}
		result.Saved = saved
	}

	if outputFormat == "json" {
		return writeJSON(out, result)
	}
	observability.NewPrinter(out).WithLimit(evalLimit).PrintRankedJobs(result.Results, result.Failures)
	if evalSave {
		_, _ = fmt.Fprintf(out, "Saved %d evaluations.\n", len(result.Saved))
	}
	return nil
}

// progressPrinter writes one line per stage and fan-out task event.
func progressPrinter(w io.Writer) pipeline.ProgressCallback {
	var mu sync.Mutex
	return func(ev pipeline.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		line := fmt.Sprintf("[%s] %s", ev.Step, ev.Status)
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func runEvaluateHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	evals, err := svc.db.ListEvaluations(ctx, evalUserID)
	if err != nil {
		return err
	}
	if evals == nil {
		evals = []types.StoredEvaluation{}
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), evals)
	}
	observability.NewPrinter(cmd.OutOrStdout()).WithLimit(evalLimit).PrintStoredEvaluations(evals)
	return nil
}

func runRate(cmd *cobra.Command, _ []string) error {
	req := &types.RateEvaluationRequest{UserScore: &rateScore}
	if cmd.Flags().Changed("feedback") {
		req.UserFeedback = &rateFeedback
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid rating: %w", err)
	}

	ctx := cmd.Context()
	if rateRunID != "" {
		return rateRun(cmd, req)
	}
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	rated, err := svc.db.RateEvaluation(ctx, rateEvaluationID, *req.UserScore, req.UserFeedback)
	if err != nil {
		return err
	}
	if rated == nil {
		return &types.ErrEvaluationNotFound{ID: rateEvaluationID}
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), rated)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintStoredEvaluations([]types.StoredEvaluation{*rated})
	return nil
}

// runRater is the part of an Evaluator rateRun needs.
type runRater interface {
	RateRun(ctx context.Context, runID string, req *types.RateEvaluationRequest) (*types.MultiJobEvaluationState, error)
}

func rateRun(cmd *cobra.Command, req *types.RateEvaluationRequest) error {
	ctx := cmd.Context()
	svc, e, err := openEvaluator(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	return printRunRating(ctx, cmd.OutOrStdout(), e, rateRunID, req)
}

func printRunRating(ctx context.Context, out io.Writer, r runRater, runID string, req *types.RateEvaluationRequest) error {
	state, err := r.RateRun(ctx, runID, req)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(out, map[string]any{
			"run_id":        state.RunID,
			"user_score":    state.UserScore,
			"user_feedback": state.UserFeedback,
		})
	}
	_, _ = fmt.Fprintf(out, "Rated run %s: %d/5\n", state.RunID, *state.UserScore)
	return nil
}
