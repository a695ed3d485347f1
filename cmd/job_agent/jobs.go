package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/indexer"
	internalschemas "github.com/jonathan/job-matcher/internal/schemas"
	"github.com/jonathan/job-matcher/internal/types"
	"github.com/jonathan/job-matcher/schemas"
)

// importChunk is the number of records upserted per transaction.
const importChunk = 500

var (
	importFile     string
	importNoIndex  bool
	indexBatchSize int
)

var importJobsCmd = &cobra.Command{
	Use:   "import-jobs",
	Short: "Load job postings from a JSON or JSON Lines file",
	Long: `Insert or update job postings. The file holds either a JSON array of job
records or one record per line. Every record is checked against the job record
schema before anything is written. Unless --no-index is set, the new and
changed jobs are embedded afterwards.`,
	RunE: runImportJobs,
}

var indexJobsCmd = &cobra.Command{
	Use:   "index-jobs",
	Short: "Embed every active job that has no embedding yet",
	RunE:  runIndexJobs,
}

var deactivateJobsCmd = &cobra.Command{
	Use:   "deactivate-jobs JOB_ID...",
	Short: "Hide jobs from retrieval, keeping their evaluations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeactivateJobs,
}

func init() {
	importJobsCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the job file, - for stdin (required)")
	importJobsCmd.Flags().BoolVar(&importNoIndex, "no-index", false, "Skip embedding the imported jobs")
	importJobsCmd.Flags().IntVarP(&indexBatchSize, "batch", "b", indexer.DefaultBatchSize, "Jobs embedded per batch")
	_ = importJobsCmd.MarkFlagRequired("file")

	indexJobsCmd.Flags().IntVarP(&indexBatchSize, "batch", "b", indexer.DefaultBatchSize, "Jobs embedded per batch")

	rootCmd.AddCommand(importJobsCmd, indexJobsCmd, deactivateJobsCmd)
}

func runImportJobs(cmd *cobra.Command, _ []string) error {
	var r io.Reader = cmd.InOrStdin()
	if importFile != "-" {
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", importFile, err)
		}
		defer f.Close()
		r = f
	}

	jobs, err := parseJobs(r)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs found in %s", importFile)
	}

	ctx := cmd.Context()
	svc, err := openServices(ctx, !importNoIndex)
	if err != nil {
		return err
	}
	defer svc.Close()

	written := 0
	for start := 0; start < len(jobs); start += importChunk {
		end := min(start+importChunk, len(jobs))
		n, err := svc.db.UpsertJobs(ctx, jobs[start:end])
		if err != nil {
			return fmt.Errorf("imported %d of %d jobs: %w", written, len(jobs), err)
		}
		written += n
	}
	appLogger.Info("imported jobs", zap.Int("count", written))

	out := struct {
		Imported int             `json:"imported"`
		Indexed  *indexer.Result `json:"indexed,omitempty"`
	}{Imported: written}

	if !importNoIndex {
		res, err := runIndexer(cmd, svc)
		if err != nil {
			return err
		}
		out.Indexed = &res
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d jobs.\n", out.Imported)
	if out.Indexed != nil {
		printIndexResult(cmd.OutOrStdout(), *out.Indexed)
	}
	return nil
}

func runIndexJobs(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := runIndexer(cmd, svc)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printIndexResult(cmd.OutOrStdout(), res)
	return nil
}

func runIndexer(cmd *cobra.Command, svc *services) (indexer.Result, error) {
	ix, err := indexer.New(svc.db, svc.llm, indexer.Options{
		Logger:      appLogger,
		Dimensions:  appConfig.LLM.EmbeddingDimensions,
		Concurrency: appConfig.Evaluator.Concurrency,
	})
	if err != nil {
		return indexer.Result{}, err
	}
	res, err := ix.Run(cmd.Context(), indexBatchSize)
	if err != nil {
		return res, fmt.Errorf("indexing stopped after %d jobs: %w", res.Indexed, err)
	}
	return res, nil
}

func printIndexResult(w io.Writer, res indexer.Result) {
	_, _ = fmt.Fprintf(w, "Indexed %d jobs", res.Indexed)
	if res.Failed > 0 {
		_, _ = fmt.Fprintf(w, ", %d failed (rerun index-jobs to retry them)", res.Failed)
	}
	_, _ = fmt.Fprintln(w, ".")
}

func runDeactivateJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := openServices(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.db.DeactivateJobs(ctx, args)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]int64{"deactivated": n})
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d of %d jobs.\n", n, len(args))
	return nil
}

// parseJobs reads a JSON array of job records or JSON Lines. Each record is
// validated against the job record schema; the first invalid record fails the
// whole file. Duplicate IDs keep the last record.
func parseJobs(r io.Reader) ([]types.JobRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}

	var raws []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("failed to parse job array: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			raws = append(raws, json.RawMessage(bytes.Clone(line)))
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read job lines: %w", err)
		}
	}

	jobs := make([]types.JobRecord, 0, len(raws))
	index := make(map[string]int, len(raws))
	for i, raw := range raws {
		if err := internalschemas.Validate(schemas.JobRecord, string(raw)); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		var j types.JobRecord
		if err := json.Unmarshal(raw, &j); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		j.ID = strings.TrimSpace(j.ID)
		if j.ID == "" {
			return nil, fmt.Errorf("job %d: id is blank", i+1)
		}
		if k, ok := index[j.ID]; ok {
			jobs[k] = j
			continue
		}
		index[j.ID] = len(jobs)
		jobs = append(jobs, j)
	}
	return jobs, nil
}
