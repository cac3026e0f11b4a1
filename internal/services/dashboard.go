package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
	"spendalyzer/internal/events"
	"spendalyzer/internal/ingest"
	"spendalyzer/internal/log"
	"spendalyzer/internal/report"
	"spendalyzer/internal/session"
)

// PreviewRows is how many ledger rows the dashboard shows.
const PreviewRows = 20

const lockStripes = 64

var (
	ErrNegativeBudget = errors.New("overall budget cannot be negative")
	ErrUnknownPeriod  = errors.New("period not present in ledger")
)

type (
	// LoadResult is what the loader detected for a new ledger.
	LoadResult struct {
		Source    string `json:"source"`
		Format    string `json:"format"`
		Encoding  string `json:"encoding,omitempty"`
		Delimiter string `json:"delimiter,omitempty"`
		Attempt   string `json:"attempt,omitempty"`
		Rows      int    `json:"rows"`
		Dropped   int    `json:"dropped"`
	}

	// View is everything the dashboard renders for one session.
	View struct {
		SessionID string              `json:"session_id"`
		Source    string              `json:"source"`
		HasLedger bool                `json:"has_ledger"`
		Columns   []string            `json:"columns"`
		Periods   []core.Period       `json:"periods"`
		Period    core.Period         `json:"period"`
		Overall   budget.Overall      `json:"overall"`
		Rules     []budget.Rule       `json:"rules"`
		Results   []budget.RuleResult `json:"results"`
		Summary   report.Summary      `json:"summary"`
		Preview   []core.Transaction  `json:"preview"`
	}
)

// DashboardService owns session state and runs the load and evaluation
// pipeline for it. Work on one session is serialised.
type DashboardService struct {
	store         session.Store
	publisher     events.Publisher
	logger        *log.Logger
	structured    *log.StructuredLogger
	initialBudget core.Money
	now           func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewDashboardService wires the service. A nil publisher disables events.
func NewDashboardService(store session.Store, publisher events.Publisher, logger *log.Logger, initialBudget core.Money) *DashboardService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &DashboardService{
		store:         store,
		publisher:     publisher,
		logger:        logger,
		structured:    log.NewStructuredLogger(logger),
		initialBudget: initialBudget,
		now:           time.Now,
	}
}

func (s *DashboardService) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// Ensure returns the session for id, creating a fresh one when id is empty,
// malformed or unknown. The returned ID may differ from the one passed in.
func (s *DashboardService) Ensure(ctx context.Context, id string) (session.Session, error) {
	if session.ValidID(id) {
		sess, err := s.store.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return session.Session{}, fmt.Errorf("get session: %w", err)
		}
	}

	sess := session.New(s.initialBudget, s.now())
	if err := s.store.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.DebugContext(ctx, "Session created", log.FieldSessionID, sess.ID)
	return sess, nil
}

// update loads, mutates and saves one session under its lock. A session
// that expired between requests is recreated under the same id.
func (s *DashboardService) update(ctx context.Context, id string, fn func(*session.Session) error) (session.Session, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.New(s.initialBudget, s.now())
		sess.ID = id
	} else if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}

	if err := fn(&sess); err != nil {
		return session.Session{}, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// LoadUpload replaces the session ledger with the parsed file. On failure
// the previous ledger stays in place.
func (s *DashboardService) LoadUpload(ctx context.Context, id, filename string, raw []byte) (LoadResult, error) {
	return s.load(ctx, id, filename, raw)
}

// LoadSample replaces the session ledger with the bundled sample.
func (s *DashboardService) LoadSample(ctx context.Context, id string) (LoadResult, error) {
	return s.load(ctx, id, ingest.SampleFilename, []byte(ingest.SampleCSV))
}

func (s *DashboardService) load(ctx context.Context, id, filename string, raw []byte) (LoadResult, error) {
	ledger, table, err := ingest.LoadLedger(raw, filename)
	if err != nil {
		s.structured.LogError(ctx, "Ledger load failed", err, log.ComponentIngest, log.OpLoad,
			log.NewFields().WithSession(id).WithLoad(filename, string(table.Format), table.Encoding, "", "", 0, 0))
		return LoadResult{}, err
	}

	res := LoadResult{
		Source:   filename,
		Format:   string(table.Format),
		Encoding: table.Encoding,
		Attempt:  table.Attempt,
		Rows:     len(ledger.Transactions),
		Dropped:  ledger.Dropped,
	}
	if table.Delimiter != 0 {
		res.Delimiter = ingest.DelimiterName(table.Delimiter)
	}

	if _, err := s.update(ctx, id, func(sess *session.Session) error {
		sess.SetLedger(filename, ledger)
		return nil
	}); err != nil {
		return LoadResult{}, err
	}

	s.structured.LogLedgerLoaded(ctx, id, filename, res.Format, res.Encoding, res.Delimiter, res.Attempt, res.Rows, res.Dropped)
	s.publish(ctx, events.NameLedgerLoaded, id, events.LedgerLoaded{
		Source:    res.Source,
		Format:    res.Format,
		Encoding:  res.Encoding,
		Delimiter: res.Delimiter,
		Rows:      res.Rows,
		Dropped:   res.Dropped,
		Periods:   len(ledger.Periods()),
	})
	return res, nil
}

// SetRules replaces the whole rule list.
func (s *DashboardService) SetRules(ctx context.Context, id string, rules []budget.Rule) error {
	return s.editRules(ctx, id, func(set *budget.RuleSet) error {
		set.Replace(rules)
		return nil
	})
}

// AddRule appends one rule.
func (s *DashboardService) AddRule(ctx context.Context, id string, rule budget.Rule) error {
	return s.editRules(ctx, id, func(set *budget.RuleSet) error {
		set.Add(rule)
		return nil
	})
}

// RemoveRule deletes the rule at index.
func (s *DashboardService) RemoveRule(ctx context.Context, id string, index int) error {
	return s.editRules(ctx, id, func(set *budget.RuleSet) error {
		return set.Remove(index)
	})
}

func (s *DashboardService) editRules(ctx context.Context, id string, fn func(*budget.RuleSet) error) error {
	sess, err := s.update(ctx, id, func(sess *session.Session) error {
		set := budget.NewRuleSet(sess.Rules)
		if err := fn(set); err != nil {
			return err
		}
		sess.Rules = set.Rules()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Rules updated",
		log.FieldSessionID, id,
		log.FieldRules, len(sess.Rules))
	s.publishRules(ctx, sess)
	return nil
}

// SetOverallBudget changes the period-wide limit. Zero is allowed.
func (s *DashboardService) SetOverallBudget(ctx context.Context, id string, amount core.Money) error {
	if amount.IsNegative() {
		return ErrNegativeBudget
	}
	sess, err := s.update(ctx, id, func(sess *session.Session) error {
		sess.OverallBudget = amount
		return nil
	})
	if err != nil {
		return err
	}
	s.publishRules(ctx, sess)
	return nil
}

// SelectPeriod picks the evaluated month. It must be one of the ledger's
// periods.
func (s *DashboardService) SelectPeriod(ctx context.Context, id string, p core.Period) error {
	_, err := s.update(ctx, id, func(sess *session.Session) error {
		if !sess.Ledger.HasPeriod(p) {
			return fmt.Errorf("%w: %s", ErrUnknownPeriod, p)
		}
		sess.Period = p
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Period selected",
		log.FieldSessionID, id,
		log.FieldPeriod, p.String())
	return nil
}

// View evaluates the session. A zero period means the session's selection.
func (s *DashboardService) View(ctx context.Context, id string, period core.Period) (View, error) {
	sess, err := s.Ensure(ctx, id)
	if err != nil {
		return View{}, err
	}
	return Build(sess, period, s.now()), nil
}

// Build computes a View from a session snapshot.
func Build(sess session.Session, period core.Period, now time.Time) View {
	if period.IsZero() {
		period = sess.SelectedPeriod(now)
	}
	overall, results := budget.Evaluate(sess.Ledger, period, sess.OverallBudget, sess.Rules)

	preview := sess.Ledger.Transactions
	if len(preview) > PreviewRows {
		preview = preview[:PreviewRows]
	}
	return View{
		SessionID: sess.ID,
		Source:    sess.Source,
		HasLedger: sess.HasLedger(),
		Columns:   sess.Ledger.Columns,
		Periods:   sess.Ledger.Periods(),
		Period:    period,
		Overall:   overall,
		Rules:     sess.Rules,
		Results:   results,
		Summary:   report.Summarize(sess.Ledger),
		Preview:   preview,
	}
}

func (s *DashboardService) publishRules(ctx context.Context, sess session.Session) {
	s.publish(ctx, events.NameRulesUpdated, sess.ID, events.RulesUpdated{
		Rules:       len(sess.Rules),
		BudgetCents: sess.OverallBudget.Cents,
	})
}

// publish never fails the caller.
func (s *DashboardService) publish(ctx context.Context, name, id string, payload any) {
	e, err := events.NewEvent(name, id, payload, s.now())
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			log.FieldEvent, name,
			log.FieldSessionID, id,
			log.FieldError, err)
	}
}

// Sweep drops sessions idle for longer than ttl.
func (s *DashboardService) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	n, err := s.store.Sweep(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Idle sessions removed",
			log.FieldOperation, log.OpSweep,
			log.FieldRemoved, n)
	}
	return n, nil
}

// Close releases the store and publisher.
func (s *DashboardService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
