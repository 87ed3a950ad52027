package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xhad/soilreport/pkg/analyzer"
)

type reply struct {
	Text   string `json:"text"`
	HTML   string `json:"html"`
	Source string `json:"source,omitempty"`
}

type errorReply struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type sessionReply struct {
	HasSummary bool       `json:"has_summary"`
	Summary    string     `json:"summary,omitempty"`
	HTML       string     `json:"html,omitempty"`
	Source     string     `json:"source,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	limit := s.config.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorReply{
				Error: "The uploaded file is too large.",
				Kind:  string(analyzer.KindInput),
			})
			return
		}
		s.writeError(w, &analyzer.Error{Kind: analyzer.KindInput, Op: analyzer.OpUpload, Err: analyzer.ErrEmptyUpload})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, &analyzer.Error{Kind: analyzer.KindInput, Op: analyzer.OpUpload, Err: analyzer.ErrEmptyUpload})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, errorReply{
			Error: "Only .pdf files are accepted.",
			Kind:  string(analyzer.KindInput),
		})
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		s.writeError(w, &analyzer.Error{Kind: analyzer.KindInput, Op: analyzer.OpUpload, Err: err})
		return
	}

	summary, err := s.service.Upload(r.Context(), id, filepath.Base(header.Filename), buf.Bytes())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply{
		Text:   summary,
		HTML:   s.renderMarkdown(summary),
		Source: filepath.Base(header.Filename),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorReply{
			Error: "Invalid request body.",
			Kind:  string(analyzer.KindInput),
		})
		return
	}

	answer, err := s.service.Ask(r.Context(), id, req.Question, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply{Text: answer, HTML: s.renderMarkdown(answer)})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	recs, err := s.service.Recommend(r.Context(), id, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply{Text: recs, HTML: s.renderMarkdown(recs)})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	sess, err := s.service.Session(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := sessionReply{HasSummary: sess.HasSummary}
	if sess.HasSummary {
		out.Summary = sess.Summary
		out.HTML = s.renderMarkdown(sess.Summary)
		out.Source = sess.SourceName
		out.UpdatedAt = &sess.UpdatedAt
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("Error rendering markdown")
		return ""
	}
	return buf.String()
}

func statusFor(kind analyzer.Kind) int {
	switch kind {
	case analyzer.KindInput:
		return http.StatusBadRequest
	case analyzer.KindNoReport:
		return http.StatusConflict
	case analyzer.KindExtraction:
		return http.StatusUnprocessableEntity
	case analyzer.KindLLM:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := analyzer.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Request failed")
	}
	writeJSON(w, status, errorReply{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}
