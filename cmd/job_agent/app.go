package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/job-matcher/internal/db"
	"github.com/jonathan/job-matcher/internal/evaluator"
	"github.com/jonathan/job-matcher/internal/llm"
	"github.com/jonathan/job-matcher/internal/pipeline"
	"github.com/jonathan/job-matcher/internal/profile"
)

// services holds the connections a command opened. Close releases them in
// reverse order.
type services struct {
	db      *db.DB
	llm     llm.Client
	closers []func() error
}

// openServices connects to PostgreSQL and, when withLLM is set, creates the
// model client.
func openServices(ctx context.Context, withLLM bool) (*services, error) {
	if appConfig.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (set DATABASE_URL or --database-url)")
	}

	s := &services{}
	database, err := db.Connect(ctx, appConfig.DatabaseURL)
	if err != nil {
		return nil, err
	}
	s.db = database
	s.closers = append(s.closers, func() error { database.Close(); return nil })

	if withLLM {
		if appConfig.APIKey == "" {
			s.Close()
			return nil, fmt.Errorf("API key is required (set GEMINI_API_KEY)")
		}
		client, err := llm.NewClient(ctx, appConfig.LLM.ToLLM(), appConfig.APIKey, llm.WithLogger(appLogger))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		s.llm = client
		s.closers = append(s.closers, client.Close)
	}
	return s, nil
}

// Close releases every opened resource.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			appLogger.Warn("failed to close resource", zap.Error(err))
		}
	}
	s.closers = nil
}

// localCheckpointer opens the SQLite checkpoint store that keeps CLI sessions
// across invocations.
func (s *services) localCheckpointer() (pipeline.Checkpointer, error) {
	cp, err := pipeline.OpenSQLiteCheckpointer(appConfig.CheckpointPath)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, cp.Close)
	return cp, nil
}

func (s *services) newBuilder(cp pipeline.Checkpointer) (*profile.Builder, error) {
	return profile.New(s.llm, s.db, profile.Options{
		Logger:                appLogger,
		Checkpointer:          cp,
		StrictGrounding:       appConfig.Profile.StrictGrounding,
		FallbackOnLookupError: appConfig.Profile.FallbackOnLookupError,
	})
}

func (s *services) newEvaluator(cp pipeline.Checkpointer) (*evaluator.Evaluator, error) {
	return evaluator.New(s.llm, s.db, db.NewVectorIndex(s.db, s.llm), s.db, evaluator.Options{
		Logger:       appLogger,
		Checkpointer: cp,
		TopK:         appConfig.Evaluator.TopK,
		Concurrency:  appConfig.Evaluator.Concurrency,
		Evaluations:  s.db,
	})
}

// readDocument returns the trimmed contents of path. An empty path yields ""
// and "-" reads stdin.
func readDocument(path string, stdin io.Reader) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
