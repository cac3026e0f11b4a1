package http

import (
	"net/http"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
	"spendalyzer/internal/report"
	"spendalyzer/internal/services"
)

type (
	ledgerResponse struct {
		SessionID    string             `json:"session_id"`
		Source       string             `json:"source"`
		Columns      []string           `json:"columns"`
		Rows         int                `json:"rows"`
		Dropped      int                `json:"dropped"`
		Periods      []core.Period      `json:"periods"`
		Transactions []core.Transaction `json:"transactions"`
	}

	evaluationResponse struct {
		Period  core.Period         `json:"period"`
		Overall budget.Overall      `json:"overall"`
		Results []budget.RuleResult `json:"results"`
		Summary report.Summary      `json:"summary"`
	}

	rulesBody struct {
		Rules         []budget.Rule `json:"rules"`
		OverallBudget *core.Money   `json:"overall_budget,omitempty"`
	}

	budgetBody struct {
		Overall core.Money `json:"overall"`
	}
)

func (s *Server) handleAPILedger(w http.ResponseWriter, r *http.Request) {
	sess, err := s.dash.Ensure(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	txs := sess.Ledger.Transactions
	if txs == nil {
		txs = []core.Transaction{}
	}
	cols := sess.Ledger.Columns
	if cols == nil {
		cols = []string{}
	}
	writeJSON(w, http.StatusOK, ledgerResponse{
		SessionID:    sess.ID,
		Source:       sess.Source,
		Columns:      cols,
		Rows:         len(txs),
		Dropped:      sess.Ledger.Dropped,
		Periods:      sess.Ledger.Periods(),
		Transactions: txs,
	})
}

// handleAPIEvaluation evaluates any valid period, present in the ledger or
// not, without changing the session's selection.
func (s *Server) handleAPIEvaluation(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r.URL.Query(), "period")
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	view, err := s.dash.View(r.Context(), sessionID(r.Context()), period)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluationResponse{
		Period:  view.Period,
		Overall: view.Overall,
		Results: view.Results,
		Summary: view.Summary,
	})
}

func (s *Server) handleAPIRules(w http.ResponseWriter, r *http.Request) {
	sess, err := s.dash.Ensure(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse(sess.Rules, sess.OverallBudget))
}

// handleAPIPutRules replaces the rule list, and the overall budget when
// given.
func (s *Server) handleAPIPutRules(w http.ResponseWriter, r *http.Request) {
	var body rulesBody
	if err := DecodeJSON(r, &body); err != nil {
		s.apiError(w, r, err)
		return
	}
	for i := range body.Rules {
		body.Rules[i].Category = sanitizeInput(body.Rules[i].Category)
		body.Rules[i].Keywords = sanitizeInput(body.Rules[i].Keywords)
	}

	ctx := r.Context()
	id := sessionID(ctx)
	if body.OverallBudget != nil {
		if err := s.dash.SetOverallBudget(ctx, id, *body.OverallBudget); err != nil {
			s.apiError(w, r, err)
			return
		}
	}
	if err := s.dash.SetRules(ctx, id, body.Rules); err != nil {
		s.apiError(w, r, err)
		return
	}
	s.handleAPIRules(w, r)
}

func (s *Server) handleAPIPutBudget(w http.ResponseWriter, r *http.Request) {
	var body budgetBody
	if err := DecodeJSON(r, &body); err != nil {
		s.apiError(w, r, err)
		return
	}
	if err := s.dash.SetOverallBudget(r.Context(), sessionID(r.Context()), body.Overall); err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	name, raw, err := s.readUpload(w, r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	res, err := s.dash.LoadUpload(r.Context(), sessionID(r.Context()), name, raw)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPISample(w http.ResponseWriter, r *http.Request) {
	res, err := s.dash.LoadSample(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	logFailure(r, status, err)
	writeJSONError(w, status, msg)
}

func rulesResponse(rules []budget.Rule, overall core.Money) rulesBody {
	if rules == nil {
		rules = []budget.Rule{}
	}
	return rulesBody{Rules: rules, OverallBudget: &overall}
}

var _ Dashboard = (*services.DashboardService)(nil)
