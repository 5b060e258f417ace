package http

import (
	"net/http"

	"gagyebu/internal/core"
	"gagyebu/internal/services"
)

type processRequest struct {
	TargetDate string `json:"target_date"`
	RuleID     *int64 `json:"rule_id"`
	UserID     *int64 `json:"user_id"`
}

type processRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	RuleID    *int64 `json:"rule_id"`
	UserID    *int64 `json:"user_id"`
}

type generateRequest struct {
	TargetDate string `json:"target_date"`
}

// handleProcess runs one scheduler batch for a single date. The body is
// optional; an empty or absent target_date means today.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	target, err := parseDateParam(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}

	result, err := s.scheduler.Process(r.Context(), services.ProcessOptions{
		TargetDate: target,
		RuleID:     req.RuleID,
		UserID:     req.UserID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleProcessRange runs the scheduler over an inclusive date range,
// capped at 31 days.
func (s *Server) handleProcessRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	start, err := parseDateParam(req.StartDate)
	if err != nil || start.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(req.EndDate)
	if err != nil || end.IsZero() {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	result, err := s.scheduler.ProcessRange(r.Context(), services.RangeOptions{
		StartDate: start,
		EndDate:   end,
		RuleID:    req.RuleID,
		UserID:    req.UserID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGenerate materializes one occurrence of the caller's rule on an
// arbitrary date, without consulting the recurrence predicate.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, idSegment string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := parseID(idSegment)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	uid := requireUser(w, r)
	if uid == 0 {
		return
	}

	var req generateRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	target, err := parseDateParam(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}
	if target.IsZero() {
		target = core.Today()
	}

	tx, err := s.scheduler.Generate(r.Context(), id, target, uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(*tx))
}

type transactionResponse struct {
	ID              int64                `json:"id"`
	GroupID         *int64               `json:"group_id,omitempty"`
	OwnerUserID     int64                `json:"owner_user_id"`
	Type            core.TransactionType `json:"type"`
	Date            core.Date            `json:"date"`
	Amount          int64                `json:"amount"`
	CategoryID      *int64               `json:"category_id,omitempty"`
	Merchant        string               `json:"merchant,omitempty"`
	Memo            string               `json:"memo,omitempty"`
	RecurringRuleID *int64               `json:"recurring_rule_id,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:              tx.ID,
		GroupID:         tx.GroupID,
		OwnerUserID:     tx.OwnerUserID,
		Type:            tx.Type,
		Date:            tx.Date,
		Amount:          tx.Amount,
		CategoryID:      tx.CategoryID,
		Merchant:        tx.Merchant,
		Memo:            tx.Memo,
		RecurringRuleID: tx.RecurringRuleID,
	}
}
