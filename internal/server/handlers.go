package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/genflow/internal/assembler"
	"github.com/alexisbeaulieu97/genflow/internal/config"
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	infraconfig "github.com/alexisbeaulieu97/genflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/genflow/internal/storyboard"
	"github.com/alexisbeaulieu97/genflow/internal/stream"
)

type errorResponse struct {
	Error string             `json:"error"`
	Code  workflow.ErrorCode `json:"code"`
}

type storyboardRequest struct {
	Segments []workflow.Segment     `json:"segments" validate:"required,min=1,dive"`
	Plans    []workflow.VariantPlan `json:"plans" validate:"dive"`
}

type assembleRequest struct {
	Segments []workflow.Segment      `json:"segments" validate:"required,min=1"`
	Plans    []workflow.VariantPlan  `json:"plans"`
	Assets   []workflow.VariantAsset `json:"assets"`
}

type workflowListResponse struct {
	Items []workflow.TaskRecord `json:"items"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRunWorkflow validates the plan before the event stream is opened, so
// a rejected plan gets a plain JSON error instead of an empty stream.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	format := config.FormatJSON
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && strings.Contains(mt, "yaml") {
		format = config.FormatYAML
	}

	doc, err := config.DecodePlan(http.MaxBytesReader(w, r.Body, maxBodyBytes), format)
	if err != nil {
		s.writeDomainError(w, infraconfig.ConvertError(err, "request"))
		return
	}
	sub := doc.Submission()
	if err := sub.Plan.Validate(); err != nil {
		s.writeDomainError(w, err)
		return
	}

	sse := stream.NewSSE(w)
	progress := events.NewLoggingStream(sse, s.logger)
	result, err := s.runner.Run(r.Context(), sub, progress)
	if err != nil {
		s.logger.Info(r.Context(), "workflow ended with error", "workflow_id", result.WorkflowID, "failed_step", result.FailedStep, "error", err)
	}
	if streamErr := sse.Err(); streamErr != nil {
		s.logger.Warn(r.Context(), "event stream interrupted", "workflow_id", result.WorkflowID, "error", streamErr)
	}
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if s.tasks == nil || id == "" {
		s.writeError(w, http.StatusNotFound, workflow.ErrCodeNotFound, "workflow not found")
		return
	}
	record, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.writeJSON(w, http.StatusOK, workflowListResponse{Items: []workflow.TaskRecord{}})
		return
	}
	records, err := s.tasks.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []workflow.TaskRecord{}
	}
	s.writeJSON(w, http.StatusOK, workflowListResponse{Items: records})
}

func (s *Server) handleGenerateStoryboard(w http.ResponseWriter, r *http.Request) {
	if s.storyboards == nil {
		s.writeError(w, http.StatusNotImplemented, workflow.ErrCodeInternal, "storyboard generation is not configured")
		return
	}
	var req storyboardRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	matrix, err := s.storyboards.Generate(r.Context(), storyboard.Request{Segments: req.Segments, Plans: req.Plans})
	if err != nil {
		s.writeDomainError(w, workflow.AsDomainError(err, workflow.ErrCodeCancelled))
		return
	}
	s.writeJSON(w, http.StatusOK, matrix)
}

func (s *Server) handleAssembleStoryboard(w http.ResponseWriter, r *http.Request) {
	var req assembleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, assembler.Assemble(req.Segments, req.Plans, req.Assets))
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, workflow.ErrCodeValidation, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := config.GetValidator().Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, workflow.ErrCodeValidation, describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

func statusFor(code workflow.ErrorCode) int {
	switch code {
	case workflow.ErrCodeValidation, workflow.ErrCodeDuplicate, workflow.ErrCodeDependency,
		workflow.ErrCodeType, workflow.ErrCodeMissing:
		return http.StatusBadRequest
	case workflow.ErrCodeNotFound:
		return http.StatusNotFound
	case workflow.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case workflow.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	case workflow.ErrCodeProvider, workflow.ErrCodeJobFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	derr := workflow.AsDomainError(err, workflow.ErrCodeInternal)
	s.writeError(w, statusFor(derr.Code), derr.Code, derr.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, code workflow.ErrorCode, message string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}
