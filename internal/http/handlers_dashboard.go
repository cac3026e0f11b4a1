package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"spendalyzer/internal/core"
	"spendalyzer/internal/log"
	"spendalyzer/internal/services"
)

type pageData struct {
	services.View
	Error       string
	Notice      string
	MaxUpload   string
	BudgetInput string
}

// outcome is what a successful form action reports back.
type outcome struct {
	notice  string
	trigger func(*HTMXResponseBuilder, services.View)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r.URL.Query(), "period")
	if err != nil {
		status, msg := errorStatus(err)
		s.renderPage(w, r, core.Period{}, status, msg, outcome{})
		return
	}
	s.renderPage(w, r, period, http.StatusOK, "", outcome{})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		name, raw, err := s.readUpload(w, r)
		if err != nil {
			return outcome{}, err
		}
		res, err := s.dash.LoadUpload(ctx, id, name, raw)
		if err != nil {
			return outcome{}, err
		}
		return loadOutcome(res), nil
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		res, err := s.dash.LoadSample(ctx, id)
		if err != nil {
			return outcome{}, err
		}
		return loadOutcome(res), nil
	})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		if err := parseForm(r); err != nil {
			return outcome{}, err
		}
		cents, err := core.ParseDecimalToCents(r.PostForm.Get("overall"))
		if err != nil {
			return outcome{}, err
		}
		amount := core.Money{Cents: cents}
		if err := s.dash.SetOverallBudget(ctx, id, amount); err != nil {
			return outcome{}, err
		}
		return outcome{
			notice: "Overall budget set to " + amount.String(),
			trigger: func(b *HTMXResponseBuilder, _ services.View) {
				b.TriggerBudgetUpdated(amount)
			},
		}, nil
	})
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		if err := parseForm(r); err != nil {
			return outcome{}, err
		}
		p, err := core.ParsePeriod(r.PostForm.Get("period"))
		if err != nil {
			return outcome{}, err
		}
		if err := s.dash.SelectPeriod(ctx, id, p); err != nil {
			return outcome{}, err
		}
		return outcome{trigger: func(b *HTMXResponseBuilder, _ services.View) {
			b.TriggerPeriodSelected(p)
		}}, nil
	})
}

func (s *Server) handleReplaceRules(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		if err := parseForm(r); err != nil {
			return outcome{}, err
		}
		rules, err := ParseRuleRows(r.PostForm)
		if err != nil {
			return outcome{}, err
		}
		if err := s.dash.SetRules(ctx, id, rules); err != nil {
			return outcome{}, err
		}
		return rulesOutcome("Rules saved"), nil
	})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		if err := parseForm(r); err != nil {
			return outcome{}, err
		}
		rule, err := ParseRuleFields(r.PostForm)
		if err != nil {
			return outcome{}, err
		}
		if err := s.dash.AddRule(ctx, id, rule); err != nil {
			return outcome{}, err
		}
		return rulesOutcome("Added rule " + rule.Label()), nil
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctx context.Context, id string) (outcome, error) {
		index, err := ParseIndex(chi.URLParam(r, "index"))
		if err != nil {
			return outcome{}, err
		}
		if err := s.dash.RemoveRule(ctx, id, index); err != nil {
			return outcome{}, err
		}
		return rulesOutcome("Rule removed"), nil
	})
}

// act runs a form action. Plain form posts are redirected back to the
// dashboard; htmx requests get the re-rendered dashboard fragment. Errors
// re-render with the mapped status either way.
func (s *Server) act(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (outcome, error)) {
	out, err := fn(r.Context(), sessionID(r.Context()))
	if err != nil {
		status, msg := errorStatus(err)
		logFailure(r, status, err)
		s.renderPage(w, r, core.Period{}, status, msg, outcome{})
		return
	}
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, core.Period{}, http.StatusOK, "", out)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, period core.Period, status int, errMsg string, out outcome) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	view, err := s.dash.View(ctx, sessionID(ctx), period)
	if err != nil {
		logFailure(r, http.StatusInternalServerError, err)
		s.fail(w, r, http.StatusInternalServerError, "Could not load the dashboard.")
		return
	}

	data := pageData{
		View:        view,
		Error:       errMsg,
		Notice:      out.notice,
		MaxUpload:   humanize.Bytes(uint64(s.maxUpload)),
		BudgetInput: view.Overall.Budget.Fixed(),
	}
	name := "index.html"
	if isHTMX(r) {
		name = "dashboard"
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Template execution failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}

	b := NewHTMXResponse().Status(status)
	switch {
	case errMsg != "":
		b.TriggerErrorNotification(errMsg)
	case out.notice != "":
		b.TriggerSuccessNotification(out.notice)
	}
	if out.trigger != nil {
		out.trigger(b, view)
	}
	b.BodyHTML(buf.String()).Write(w)
}

func loadOutcome(res services.LoadResult) outcome {
	notice := fmt.Sprintf("Loaded %s rows from %s", humanize.Comma(int64(res.Rows)), res.Source)
	if res.Dropped > 0 {
		notice += fmt.Sprintf(" (%s rows skipped: unreadable date or amount)", humanize.Comma(int64(res.Dropped)))
	}
	return outcome{
		notice: notice,
		trigger: func(b *HTMXResponseBuilder, _ services.View) {
			b.TriggerLedgerLoaded(res)
		},
	}
}

func rulesOutcome(notice string) outcome {
	return outcome{
		notice: notice,
		trigger: func(b *HTMXResponseBuilder, v services.View) {
			b.TriggerRulesUpdated(len(v.Rules))
		},
	}
}
