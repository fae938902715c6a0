package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/application/command"
	"github.com/campus-hub/campus-course-hub/internal/application/query"
	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
	"github.com/campus-hub/campus-course-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

// paymentField is embedded in every request body so that a smuggled
// payment amount is caught uniformly during decoding.
type paymentField struct {
	PaymentAmount int64 `json:"payment_amount,omitempty"`
}

func (p paymentField) payment() int64 { return p.PaymentAmount }

type paymentCarrier interface{ payment() int64 }

// decodeJSON decodes the request body into dst. It writes the error
// response itself and returns false when decoding fails or the body
// carries a payment indication.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return false
	}

	if pc, ok := dst.(paymentCarrier); ok && pc.payment() != 0 {
		writeJSONError(w, http.StatusPaymentRequired, "value_transfer_rejected", shared.ErrValueTransferRejected.Error())
		return false
	}

	return true
}

// courseIDFromPath parses the {id} path segment. Writes the error
// response itself on failure.
func courseIDFromPath(w http.ResponseWriter, r *http.Request) (shared.CourseID, bool) {
	id, err := shared.NewCourseID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_course_id", "Course id must be a UUID")
		return "", false
	}
	return id, true
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors to HTTP statuses. Role rejections
// are 403, lifecycle and roster conflicts 409, missing entities 404,
// input rejections 422, payment indications 402.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrValueTransferRejected):
		writeJSONError(w, http.StatusPaymentRequired, "value_transfer_rejected", err.Error())
	case shared.IsPermissionDenied(err):
		writeJSONError(w, http.StatusForbidden, "permission_denied", err.Error())
	case shared.IsCourseClosed(err):
		writeJSONError(w, http.StatusConflict, "course_closed", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrNotEnrolled), shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	default:
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createCourseRequest struct {
	paymentField
	Name string `json:"name"`
	Term string `json:"term"`
}

type createCourseResponse struct {
	CourseID string `json:"course_id"`
	Owner    string `json:"owner"`
}

// POST /api/v1/courses
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req createCourseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.CreateCourse.Handle(r.Context(), command.CreateCourseCommand{
		Caller:        caller,
		Name:          req.Name,
		Term:          req.Term,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, createCourseResponse{
		CourseID: result.CourseID.String(),
		Owner:    result.Owner.String(),
	})
}

type setCoordinatorRequest struct {
	paymentField
	Coordinator string `json:"coordinator"`
}

// PUT /api/v1/courses/{id}/coordinator
func (s *Server) handleSetCoordinator(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req setCoordinatorRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	coordinator, err := shared.NewAccountID(req.Coordinator)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	err = s.deps.SetCoordinator.Handle(r.Context(), command.SetCoordinatorCommand{
		Caller:        caller,
		CourseID:      courseID,
		Coordinator:   coordinator,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"coordinator": coordinator.String()})
}

// POST /api/v1/courses/{id}/close
func (s *Server) handleCloseCourse(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	err := s.deps.CloseCourse.Handle(r.Context(), command.CloseCourseCommand{
		Caller:        caller,
		CourseID:      courseID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]bool{"closed": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type addTeacherRequest struct {
	paymentField
	Account string `json:"account"`
	Name    string `json:"name"`
}

// POST /api/v1/courses/{id}/teachers
func (s *Server) handleAddTeacher(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req addTeacherRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	account, err := shared.NewAccountID(req.Account)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.AddTeacher.Handle(r.Context(), command.AddTeacherCommand{
		Caller:        caller,
		CourseID:      courseID,
		Account:       account,
		Name:          req.Name,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Registered {
		// Repeat registration is a silent no-op.
		status = http.StatusOK
	}
	writeJSON(w, r, status, map[string]bool{"registered": result.Registered})
}

type enrollStudentRequest struct {
	paymentField
	Account    string `json:"account,omitempty"`
	Name       string `json:"name"`
	IDDocument string `json:"id_document"`
	Email      string `json:"email,omitempty"`
}

type enrollStudentResponse struct {
	Account  string `json:"account"`
	Position int    `json:"position"`
}

// POST /api/v1/courses/{id}/students
func (s *Server) handleEnrollByAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req enrollStudentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	account, err := shared.NewAccountID(req.Account)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.EnrollStudent.HandleAdmin(r.Context(), command.EnrollByAdminCommand{
		Caller:        caller,
		CourseID:      courseID,
		Account:       account,
		Name:          req.Name,
		IDDocument:    req.IDDocument,
		Email:         req.Email,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, enrollStudentResponse{
		Account:  result.Account.String(),
		Position: result.Position,
	})
}

// POST /api/v1/courses/{id}/enrollment
func (s *Server) handleSelfEnroll(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req enrollStudentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.EnrollStudent.HandleSelf(r.Context(), command.SelfEnrollCommand{
		Caller:        caller,
		CourseID:      courseID,
		Name:          req.Name,
		IDDocument:    req.IDDocument,
		Email:         req.Email,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, enrollStudentResponse{
		Account:  result.Account.String(),
		Position: result.Position,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION & GRADING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createEvaluationRequest struct {
	paymentField
	Name         string    `json:"name"`
	DueAt        time.Time `json:"due_at"`
	WeightPct    int       `json:"weight_pct"`
	MinPassUnits int       `json:"min_pass_units"`
}

// POST /api/v1/courses/{id}/evaluations
func (s *Server) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req createEvaluationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.CreateEvaluation.Handle(r.Context(), command.CreateEvaluationCommand{
		Caller:        caller,
		CourseID:      courseID,
		Name:          req.Name,
		DueAt:         req.DueAt,
		WeightPct:     req.WeightPct,
		MinPassUnits:  req.MinPassUnits,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]int{"index": result.Index})
}

type setGradeRequest struct {
	paymentField
	Student   string `json:"student"`
	EvalIndex int    `json:"eval_index"`
	Kind      string `json:"kind"`
	RawUnits  int    `json:"raw_units,omitempty"`
}

// PUT /api/v1/courses/{id}/grades
func (s *Server) handleSetGrade(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	var req setGradeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	student, err := shared.NewAccountID(req.Student)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	kind, err := course.ParseGradeKind(req.Kind)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	err = s.deps.SetGrade.Handle(r.Context(), command.SetGradeCommand{
		Caller:        caller,
		CourseID:      courseID,
		Student:       student,
		EvalIndex:     req.EvalIndex,
		Kind:          kind,
		RawUnits:      req.RawUnits,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]bool{"recorded": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// GET /api/v1/courses/{id}/me
func (s *Server) handleGetOwnRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	record, err := s.deps.GetOwnRecord.Handle(r.Context(), query.GetOwnRecordQuery{
		CourseID: courseID,
		Caller:   caller,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, record)
}

// GET /api/v1/courses/{id}/me/grades/{index}
func (s *Server) handleGetOwnGrade(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_index", "Evaluation index must be an integer")
		return
	}

	grade, err := s.deps.GetOwnGrade.Handle(r.Context(), query.GetOwnGradeQuery{
		CourseID:  courseID,
		Caller:    caller,
		EvalIndex: index,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, grade)
}

// GET /api/v1/courses/{id}/me/final
func (s *Server) handleGetOwnFinal(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	final, err := s.deps.ComputeFinal.Handle(r.Context(), query.ComputeFinalQuery{
		CourseID:    courseID,
		Student:     caller,
		SelfService: true,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, final)
}

// GET /api/v1/courses/{id}/students/{account}/final
func (s *Server) handleGetStudentFinal(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	student, err := shared.NewAccountID(r.PathValue("account"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	final, err := s.deps.ComputeFinal.Handle(r.Context(), query.ComputeFinalQuery{
		CourseID: courseID,
		Student:  student,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, final)
}

// GET /api/v1/courses/{id}/counts
func (s *Server) handleGetCounts(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDFromPath(w, r)
	if !ok {
		return
	}

	counts, err := s.deps.GetCounts.Handle(r.Context(), query.GetCountsQuery{
		CourseID: courseID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, counts)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type healthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services,omitempty"`
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	services := make(map[string]string, len(s.deps.HealthCheckers))
	for name, check := range s.deps.HealthCheckers {
		if err := check(ctx); err != nil {
			services[name] = err.Error()
			status = "degraded"
		} else {
			services[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, r, code, healthResponse{
		Status:   status,
		Uptime:   s.Uptime().String(),
		Services: services,
	})
}

// GET /ready
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.handleHealth(w, r)
}

// GET /live
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"service": "campus-course-hub",
		"version": "v1",
	})
}
