package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	stderrors "commerce-insights/internal/common/errors"
	"commerce-insights/internal/insights/chart"
	"commerce-insights/internal/insights/executor"
	"commerce-insights/internal/models"
)

type askRequest struct {
	StoreID  string `json:"storeId"`
	Question string `json:"question"`
}

type askResponse struct {
	SQL         string            `json:"sql"`
	Params      []any             `json:"params"`
	Explanation string            `json:"explanation"`
	ChartSpec   *models.ChartSpec `json:"chartSpec"`
}

type answerResponse struct {
	Explanation string                `json:"explanation"`
	Result      *executor.QueryResult `json:"result"`
	Chart       *chart.Config         `json:"chart,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleAsk runs the pipeline only: the caller gets the validated SQL,
// parameters and optional chart spec without executing anything.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	result, err := s.pipeline.ProcessQuestion(r.Context(), req.StoreID, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		SQL:         result.SQL,
		Params:      result.Params,
		Explanation: result.Explanation,
		ChartSpec:   result.ChartSpec,
	})
}

// handleAnswer runs the full loop: pipeline, execution, and chart rendering
// from the returned rows.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	generated, err := s.pipeline.ProcessQuestion(r.Context(), req.StoreID, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}

	queryResult, err := s.runner.Run(r.Context(), generated.SQL, generated.Params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Explanation: generated.Explanation,
		Result:      queryResult,
		Chart:       chart.ToChartConfig(generated.ChartSpec, queryResult.Rows, queryResult.Columns, s.logger),
	})
}

// handleReport serves the canned aggregates; report name comes from the
// path, store and window from the query string.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("storeId")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var result *executor.QueryResult
	var err error
	switch report := r.PathValue("report"); report {
	case "revenue-summary":
		result, err = s.reports.RevenueSummary(r.Context(), storeID, days)
	case "orders-by-day":
		result, err = s.reports.OrdersByDay(r.Context(), storeID, days)
	case "top-products":
		result, err = s.reports.TopProducts(r.Context(), storeID, limit)
	case "new-customers":
		result, err = s.reports.NewCustomers(r.Context(), storeID, days)
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
			Code:    "UNKNOWN_REPORT",
			Message: "Unknown report " + report,
		}})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be valid JSON",
		}})
		return askRequest{}, false
	}
	return req, true
}

// writeError maps the error taxonomy onto HTTP statuses. Only Code and
// Message cross the wire; Details and causes stay in the logs.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var se *stderrors.StandardError
	if !errors.As(err, &se) {
		s.logger.WithError(err).Error("untyped error reached the API layer", nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
			Code:    "INTERNAL",
			Message: "Internal server error",
		}})
		return
	}

	writeJSON(w, statusFor(se.Code), errorResponse{Error: errorBody{
		Code:    string(se.Code),
		Message: se.Message,
	}})
}

func statusFor(code stderrors.ErrorCode) int {
	switch code {
	case stderrors.ErrCodeInvalidStoreID,
		stderrors.ErrCodeQuestionEmpty,
		stderrors.ErrCodeQuestionTooLong:
		return http.StatusBadRequest
	case stderrors.ErrCodeAIUnavailable:
		return http.StatusServiceUnavailable
	case stderrors.ErrCodeAIUnsafeQuery,
		stderrors.ErrCodeQuerySyntaxError:
		return http.StatusUnprocessableEntity
	case stderrors.ErrCodeQueryPermissionDenied:
		return http.StatusForbidden
	case stderrors.ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
