package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gagyebu/internal/core"
	"gagyebu/internal/services"
)

type ruleResponse struct {
	ID         int64             `json:"id"`
	GroupID    *int64            `json:"group_id,omitempty"`
	CreatedBy  int64             `json:"created_by"`
	StartDate  core.Date         `json:"start_date"`
	Frequency  core.Frequency    `json:"frequency"`
	DayRule    string            `json:"day_rule"`
	Amount     int64             `json:"amount"`
	CategoryID *int64            `json:"category_id,omitempty"`
	Category   *categoryResponse `json:"category,omitempty"`
	Merchant   string            `json:"merchant,omitempty"`
	Memo       string            `json:"memo,omitempty"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type categoryResponse struct {
	ID    int64                `json:"id"`
	Name  string               `json:"name"`
	Type  core.TransactionType `json:"type"`
	Color string               `json:"color,omitempty"`
}

func toRuleResponse(rule core.RecurringRule) ruleResponse {
	resp := ruleResponse{
		ID:         rule.ID,
		GroupID:    rule.GroupID,
		CreatedBy:  rule.CreatedBy,
		StartDate:  rule.StartDate,
		Frequency:  rule.Frequency,
		DayRule:    rule.DayRule,
		Amount:     rule.Amount,
		CategoryID: rule.CategoryID,
		Merchant:   rule.Merchant,
		Memo:       rule.Memo,
		IsActive:   rule.IsActive,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
	if rule.Category != nil {
		resp.Category = &categoryResponse{
			ID:    rule.Category.ID,
			Name:  rule.Category.Name,
			Type:  rule.Category.Type,
			Color: rule.Category.Color,
		}
	}
	return resp
}

func toRuleResponses(rules []core.RecurringRule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	return out
}

type createRuleRequest struct {
	GroupID    *int64  `json:"group_id"`
	StartDate  string  `json:"start_date"`
	Frequency  string  `json:"frequency"`
	DayRule    string  `json:"day_rule"`
	Amount     int64   `json:"amount"`
	CategoryID *int64  `json:"category_id"`
	Merchant   *string `json:"merchant"`
	Memo       *string `json:"memo"`
}

type updateRuleRequest struct {
	Frequency  *string `json:"frequency"`
	DayRule    *string `json:"day_rule"`
	Amount     *int64  `json:"amount"`
	CategoryID *int64  `json:"category_id"`
	Merchant   *string `json:"merchant"`
	Memo       *string `json:"memo"`
	IsActive   *bool   `json:"is_active"`
}

// handleRules serves the collection: GET lists, POST creates.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRules(w, r)
	case http.MethodPost:
		s.handleCreateRule(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == 0 {
		return
	}

	var filter core.RuleListFilter
	if v := strings.TrimSpace(r.URL.Query().Get("is_active")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid is_active parameter")
			return
		}
		filter.IsActive = &active
	}
	if v := strings.TrimSpace(r.URL.Query().Get("group_id")); v != "" {
		groupID, err := parseID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group_id parameter")
			return
		}
		filter.GroupID = &groupID
	}

	rules, err := s.rules.List(r.Context(), uid, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponses(rules))
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == 0 {
		return
	}

	var req createRuleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	startDate, err := parseDateParam(req.StartDate)
	if err != nil || startDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	rule := core.RecurringRule{
		GroupID:    req.GroupID,
		CreatedBy:  uid,
		StartDate:  startDate,
		Frequency:  core.Frequency(req.Frequency),
		DayRule:    req.DayRule,
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
	}
	if req.Merchant != nil {
		rule.Merchant = *req.Merchant
	}
	if req.Memo != nil {
		rule.Memo = *req.Memo
	}

	created, err := s.rules.Create(r.Context(), rule)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRuleResponse(*created))
}

// handleRuleByID serves one rule: GET reads, PUT updates, DELETE removes.
func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request, idSegment string) {
	id, err := parseID(idSegment)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	uid := requireUser(w, r)
	if uid == 0 {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.rules.Get(r.Context(), id, uid)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(*rule))

	case http.MethodPut:
		var req updateRuleRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		patch := services.RuleUpdate{
			DayRule:    req.DayRule,
			Amount:     req.Amount,
			CategoryID: req.CategoryID,
			Merchant:   req.Merchant,
			Memo:       req.Memo,
			IsActive:   req.IsActive,
		}
		if req.Frequency != nil {
			freq := core.Frequency(*req.Frequency)
			patch.Frequency = &freq
		}

		updated, err := s.rules.Update(r.Context(), id, uid, patch)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(*updated))

	case http.MethodDelete:
		if err := s.rules.Delete(r.Context(), id, uid); err != nil {
			writeServiceError(w, r, err)
			return
		}
		slog.InfoContext(r.Context(), "Rule deleted via API", "rule_id", id, "user_id", uid)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
