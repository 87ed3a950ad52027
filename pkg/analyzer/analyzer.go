// Package analyzer runs the soil report pipeline for one session at a time:
// extract, summarize, then answer questions or recommend products from the
// stored summary.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xhad/soilreport/internal/models"
	"github.com/xhad/soilreport/internal/types"
)

type Service struct {
	extractor types.Extractor
	analyst   types.Analyst
	sessions  types.SessionStore
	tempDir   string
}

type Option func(*Service)

// WithTempDir sets where uploads are written before extraction.
func WithTempDir(dir string) Option {
	return func(s *Service) {
		s.tempDir = dir
	}
}

func New(extractor types.Extractor, analyst types.Analyst, sessions types.SessionStore, opts ...Option) *Service {
	s := &Service{
		extractor: extractor,
		analyst:   analyst,
		sessions:  sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload extracts and summarizes a report and makes it the session's current
// summary. On any failure the previous summary is left in place.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &Error{Kind: KindInput, Op: OpUpload, Err: ErrEmptyUpload}
	}

	start := time.Now()
	content, err := s.extract(data)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Str("file", filename).Msg("Extraction failed")
		return "", &Error{Kind: KindExtraction, Op: OpUpload, Err: err}
	}

	summary, err := s.analyst.Summarize(ctx, content)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("Summarization failed")
		return "", &Error{Kind: KindLLM, Op: OpSummarize, Err: err}
	}

	if err := s.sessions.Set(ctx, sessionID, summary, filename); err != nil {
		return "", &Error{Kind: KindStore, Op: OpUpload, Err: err}
	}

	log.Info().
		Str("session", sessionID).
		Str("file", filename).
		Int("bytes", len(data)).
		Int("content_bytes", len(content)).
		Dur("elapsed", time.Since(start)).
		Msg("Report summarized")

	return summary, nil
}

// extract writes the payload to a temp file for the extractor and removes it
// afterwards. A failed removal is only logged.
func (s *Service) extract(data []byte) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "soilreport-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return s.extractor.Extract(path)
}

// Ask answers a question about the session's report. A blank question is
// rejected before the session is consulted.
func (s *Service) Ask(ctx context.Context, sessionID, question string, stream types.StreamFunc) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", &Error{Kind: KindInput, Op: OpAsk, Err: ErrEmptyQuestion}
	}

	summary, err := s.summary(ctx, sessionID, OpAsk)
	if err != nil {
		return "", err
	}

	answer, err := s.analyst.Answer(ctx, summary, question, stream)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("Answer failed")
		return "", &Error{Kind: KindLLM, Op: OpAsk, Err: err}
	}
	return answer, nil
}

func (s *Service) Recommend(ctx context.Context, sessionID string, stream types.StreamFunc) (string, error) {
	summary, err := s.summary(ctx, sessionID, OpRecommend)
	if err != nil {
		return "", err
	}

	reply, err := s.analyst.Recommend(ctx, summary, stream)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("Recommendation failed")
		return "", &Error{Kind: KindLLM, Op: OpRecommend, Err: err}
	}
	return reply, nil
}

// Session returns the session's current state. A session with no upload yet
// has HasSummary false.
func (s *Service) Session(ctx context.Context, sessionID string) (models.Session, error) {
	sess, _, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Session{}, &Error{Kind: KindStore, Op: "session", Err: err}
	}
	return sess, nil
}

func (s *Service) summary(ctx context.Context, sessionID, op string) (string, error) {
	sess, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", &Error{Kind: KindStore, Op: op, Err: err}
	}
	if !ok || !sess.HasSummary {
		return "", &Error{Kind: KindNoReport, Op: op, Err: ErrNoReport}
	}
	return sess.Summary, nil
}
