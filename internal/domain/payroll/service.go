package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cryptoutil "payengine/internal/platform/crypto"
	"payengine/internal/platform/metrics"
)

// ServiceOptions configure how the service hosts the engine.
type ServiceOptions struct {
	BatchConcurrency int
	StrictYtdYear    bool
	TraceLevel       TraceLevel
	EngineTimeout    time.Duration
	Metrics          *metrics.Collector
	Now              func() time.Time
	NewID            func() string
}

// Request is one paycheck to compute. Nil configuration slices are loaded
// from the store for the input's employer.
type Request struct {
	Input                 PaycheckInput
	TraceLevel            TraceLevel
	EarningDefinitions    []EarningDefinition
	DeductionPlans        []DeductionPlan
	SupportCap            *SupportCapContext
	EmployerContributions []EmployerContributionLine
}

type Service struct {
	store   StoreAPI
	payslip *cryptoutil.Service
	opts    ServiceOptions
}

func NewService(store StoreAPI, crypto *cryptoutil.Service, opts ServiceOptions) (*Service, error) {
	payslipKey, err := crypto.Derive("payslip")
	if err != nil {
		return nil, err
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	if opts.TraceLevel == "" {
		opts.TraceLevel = TraceAudit
	}
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{store: store, payslip: payslipKey, opts: opts}, nil
}

// maxYtdAttempts bounds how often a record or void is recomputed after
// another writer moved the employee's YTD.
const maxYtdAttempts = 3

// Preview computes a paycheck without persisting anything.
func (s *Service) Preview(ctx context.Context, req Request) (PaycheckComputation, error) {
	comp, _, err := s.compute(ctx, req)
	return comp, err
}

// ComputeAndRecord computes a paycheck and stores it with its audit and the
// employee's new YTD snapshot.
func (s *Service) ComputeAndRecord(ctx context.Context, req Request) (PaycheckComputation, error) {
	out, err := s.record(ctx, []Request{req})
	if err != nil {
		return PaycheckComputation{}, err
	}
	return out[0], nil
}

// ComputeBatch computes every request concurrently and records the whole
// batch in one transaction. Results follow the order of reqs; the first
// failure cancels the remaining work and nothing is stored. An employee may
// appear only once per batch since each paycheck advances their YTD.
func (s *Service) ComputeBatch(ctx context.Context, reqs []Request) ([]PaycheckComputation, error) {
	seen := make(map[string]int, len(reqs))
	for i, req := range reqs {
		key := string(req.Input.EmployerID) + "/" + string(req.Input.EmployeeID)
		if j, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: employee %s appears at %d and %d", ErrInvalidInput, req.Input.EmployeeID, j, i)
		}
		seen[key] = i
	}

	s.opts.Metrics.RecordBatch(len(reqs))
	return s.record(ctx, reqs)
}

// record computes reqs against the stored YTD and persists them together.
// When another writer moves one of the snapshots first, the whole set is
// recomputed from the fresh YTD.
func (s *Service) record(ctx context.Context, reqs []Request) ([]PaycheckComputation, error) {
	reqs = slices.Clone(reqs)
	for i := range reqs {
		if reqs[i].Input.PaycheckID == "" {
			reqs[i].Input.PaycheckID = PaycheckID(s.opts.NewID())
		}
	}

	for attempt := 1; ; attempt++ {
		pending, err := s.computeAll(ctx, reqs)
		if err != nil {
			return nil, err
		}
		err = s.store.RecordPaychecks(ctx, pending)
		if err == nil {
			out := make([]PaycheckComputation, len(pending))
			for i, p := range pending {
				out[i] = p.Computation
			}
			return out, nil
		}
		if !errors.Is(err, ErrYtdConflict) || attempt == maxYtdAttempts {
			if len(reqs) == 1 {
				return nil, fmt.Errorf("record paycheck %s: %w", reqs[0].Input.PaycheckID, err)
			}
			return nil, fmt.Errorf("record batch of %d: %w", len(reqs), err)
		}
		slog.Info("ytd changed during compute, retrying", "attempt", attempt, "paychecks", len(reqs), "err", err)
	}
}

func (s *Service) computeAll(ctx context.Context, reqs []Request) ([]PendingPaycheck, error) {
	pending := make([]PendingPaycheck, len(reqs))
	if len(reqs) == 1 {
		comp, base, err := s.compute(ctx, reqs[0])
		if err != nil {
			return nil, err
		}
		pending[0] = PendingPaycheck{Computation: comp, BaseVersion: base}
		return pending, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i := range reqs {
		g.Go(func() error {
			comp, base, err := s.compute(gctx, reqs[i])
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			pending[i] = PendingPaycheck{Computation: comp, BaseVersion: base}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *Service) Get(ctx context.Context, id PaycheckID) (PaycheckRecord, error) {
	return s.store.GetPaycheck(ctx, id)
}

func (s *Service) GetAudit(ctx context.Context, id PaycheckID) (PaycheckAudit, error) {
	return s.store.GetAudit(ctx, id)
}

func (s *Service) Ytd(ctx context.Context, employerID EmployerID, employeeID EmployeeID, year int) (YtdSnapshot, error) {
	return s.store.LoadYtd(ctx, employerID, employeeID, year)
}

// Void reverses an issued paycheck and rolls the employee's YTD back.
func (s *Service) Void(ctx context.Context, id PaycheckID) (PaycheckComputation, error) {
	reversalID := PaycheckID(s.opts.NewID())
	for attempt := 1; ; attempt++ {
		reversal, err := s.voidOnce(ctx, id, reversalID)
		if !errors.Is(err, ErrYtdConflict) || attempt == maxYtdAttempts {
			return reversal, err
		}
		slog.Info("ytd changed during void, retrying", "paycheck_id", id, "attempt", attempt)
	}
}

func (s *Service) voidOnce(ctx context.Context, id, reversalID PaycheckID) (PaycheckComputation, error) {
	rec, err := s.store.GetPaycheck(ctx, id)
	if err != nil {
		return PaycheckComputation{}, err
	}
	if rec.Status != PaycheckStatusIssued {
		return PaycheckComputation{}, ErrAlreadyVoided
	}
	orig := rec.Computation.Paycheck
	current, base, err := s.store.LoadYtdVersion(ctx, orig.EmployerID, orig.EmployeeID, orig.YtdAfter.Year)
	if err != nil {
		return PaycheckComputation{}, err
	}
	reversal := Void(rec.Computation, reversalID, current, s.opts.Now())
	if err := s.store.RecordVoid(ctx, id, PendingPaycheck{Computation: reversal, BaseVersion: base}); err != nil {
		return PaycheckComputation{}, fmt.Errorf("void paycheck %s: %w", id, err)
	}
	return reversal, nil
}

// RenderPayslip returns the PDF payslip for a recorded paycheck. The first
// render is stored sealed under the payslip key; later calls reuse it.
func (s *Service) RenderPayslip(ctx context.Context, id PaycheckID) ([]byte, error) {
	stored, err := s.store.LoadPayslip(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		plain, err := s.payslip.Open(stored, []byte(id))
		if err == nil {
			return plain, nil
		}
		slog.Warn("stored payslip unreadable, rendering again", "paycheck_id", id, "err", err)
	}

	rec, err := s.store.GetPaycheck(ctx, id)
	if err != nil {
		return nil, err
	}
	pdf, err := RenderPayslipPDF(rec)
	if err != nil {
		return nil, fmt.Errorf("render payslip %s: %w", id, err)
	}
	sealed, err := s.payslip.Seal(pdf, []byte(id))
	if err != nil {
		return nil, err
	}
	if err := s.store.SavePayslip(ctx, id, sealed); err != nil {
		slog.Warn("payslip not cached", "paycheck_id", id, "err", err)
	}
	return pdf, nil
}

// compute also reports the stored YTD version the result was built on.
func (s *Service) compute(ctx context.Context, req Request) (PaycheckComputation, YtdVersion, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.opts.EngineTimeout)
	defer cancel()

	in, base, opts, err := s.prepare(ctx, req)
	if err != nil {
		s.opts.Metrics.RecordComputation(metrics.OutcomeFailed, time.Since(start))
		return PaycheckComputation{}, 0, err
	}
	comp, err := ComputePaycheck(in, opts)
	if err == nil {
		err = ctx.Err()
	}
	switch {
	case err == nil:
		s.opts.Metrics.RecordComputation(metrics.OutcomeOK, time.Since(start))
	case errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrYtdYearMismatch):
		s.opts.Metrics.RecordComputation(metrics.OutcomeInvalid, time.Since(start))
	default:
		s.opts.Metrics.RecordComputation(metrics.OutcomeFailed, time.Since(start))
	}
	if err != nil {
		return PaycheckComputation{}, 0, err
	}
	return comp, base, nil
}

// prepare fills what the caller left out: an id, prior YTD and the
// employer's configuration.
func (s *Service) prepare(ctx context.Context, req Request) (PaycheckInput, YtdVersion, Options, error) {
	in := req.Input
	if in.PaycheckID == "" {
		in.PaycheckID = PaycheckID(s.opts.NewID())
	}
	base := ytdUnchecked
	if ytdOmitted(in.PriorYtd) && !in.Period.CheckDate.IsZero() {
		snap, version, err := s.store.LoadYtdVersion(ctx, in.EmployerID, in.EmployeeID, in.Period.CheckDate.Year())
		if err != nil {
			return in, 0, Options{}, fmt.Errorf("load ytd: %w", err)
		}
		in.PriorYtd = snap
		base = version
	}

	defs := req.EarningDefinitions
	if defs == nil {
		var err error
		if defs, err = s.store.ListEarningDefinitions(ctx, in.EmployerID); err != nil {
			return in, 0, Options{}, fmt.Errorf("load earning definitions: %w", err)
		}
	}
	earningConfig := make(StaticEarningConfig, len(defs))
	for _, def := range defs {
		earningConfig[def.Code] = def
	}

	plans := req.DeductionPlans
	if plans == nil {
		var err error
		if plans, err = s.store.ListDeductionPlans(ctx, in.EmployerID); err != nil {
			return in, 0, Options{}, fmt.Errorf("load deduction plans: %w", err)
		}
	}

	level := req.TraceLevel
	if level == "" {
		level = s.opts.TraceLevel
	}
	return in, base, Options{
		ComputedAt:            s.opts.Now(),
		TraceLevel:            level,
		EarningConfig:         earningConfig,
		DeductionConfig:       StaticDeductionConfig(plans),
		EmployerContributions: req.EmployerContributions,
		StrictYtdYear:         s.opts.StrictYtdYear,
		SupportCap:            req.SupportCap,
	}, nil
}

func ytdOmitted(y YtdSnapshot) bool {
	return y.Year == 0 &&
		len(y.EarningsByCode) == 0 &&
		len(y.EmployeeTaxesByRule) == 0 &&
		len(y.EmployerTaxesByRule) == 0 &&
		len(y.DeductionsByCode) == 0 &&
		len(y.EmployerContributionsByCode) == 0 &&
		len(y.WagesByBasis) == 0
}
