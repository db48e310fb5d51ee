package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"payengine/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// PaycheckRecord is a persisted computation with its lifecycle state.
type PaycheckRecord struct {
	Computation PaycheckComputation `json:"computation"`
	Status      string              `json:"status"`
	ReversalOf  PaycheckID          `json:"reversalOf,omitempty"`
	VoidedBy    PaycheckID          `json:"voidedBy,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// RecordPaychecks stores the batch in one transaction: either every paycheck
// and YTD snapshot lands or none does.
func (s *Store) RecordPaychecks(ctx context.Context, batch []PendingPaycheck) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	for _, pending := range batch {
		if err := insertPaycheck(ctx, tx, pending.Computation, PaycheckStatusIssued, ""); err != nil {
			rollback(ctx, tx)
			return err
		}
		if err := writeYtd(ctx, tx, pending.Computation.Paycheck, pending.BaseVersion); err != nil {
			rollback(ctx, tx)
			return err
		}
	}
	return tx.Commit(ctx)
}

// RecordVoid marks the original voided and stores its reversal. Only an
// issued paycheck can be voided; anything else yields ErrAlreadyVoided.
func (s *Store) RecordVoid(ctx context.Context, originalID PaycheckID, reversal PendingPaycheck) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
    UPDATE paychecks
    SET status = $2, voided_by = $3
    WHERE id = $1 AND status = $4
  `, originalID, PaycheckStatusVoided, reversal.Computation.Paycheck.PaycheckID, PaycheckStatusIssued)
	if err != nil {
		rollback(ctx, tx)
		return err
	}
	if tag.RowsAffected() == 0 {
		rollback(ctx, tx)
		return ErrAlreadyVoided
	}
	if err := insertPaycheck(ctx, tx, reversal.Computation, PaycheckStatusReversal, originalID); err != nil {
		rollback(ctx, tx)
		return err
	}
	if err := writeYtd(ctx, tx, reversal.Computation.Paycheck, reversal.BaseVersion); err != nil {
		rollback(ctx, tx)
		return err
	}
	return tx.Commit(ctx)
}

func insertPaycheck(ctx context.Context, tx pgx.Tx, comp PaycheckComputation, status string, reversalOf PaycheckID) error {
	p := comp.Paycheck
	resultJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode paycheck: %w", err)
	}
	auditJSON, err := json.Marshal(comp.Audit)
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO paychecks (id, employer_id, employee_id, pay_run_id, period_id, check_date, ytd_year, status, reversal_of, gross, net, result)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
  `, p.PaycheckID, p.EmployerID, p.EmployeeID, nullIfEmpty(string(p.PayRunID)), p.Period.ID, p.Period.CheckDate,
		p.YtdAfter.Year, status, nullIfEmpty(string(reversalOf)), p.Gross.Int64(), p.Net.Int64(), resultJSON); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO paycheck_audits (paycheck_id, input_hash, engine_version, computed_at, audit)
    VALUES ($1,$2,$3,$4,$5)
  `, p.PaycheckID, comp.Audit.InputHash, comp.Audit.EngineVersion, comp.Audit.ComputedAt, auditJSON)
	return err
}

// writeYtd stores p's YTD-after snapshot. A positive base only replaces the
// row still at that version, zero only inserts a missing row, and a negative
// base overwrites unconditionally.
func writeYtd(ctx context.Context, tx pgx.Tx, p PaycheckResult, base YtdVersion) error {
	snapshot, err := json.Marshal(p.YtdAfter)
	if err != nil {
		return fmt.Errorf("encode ytd: %w", err)
	}
	args := []any{p.EmployerID, p.EmployeeID, p.YtdAfter.Year, snapshot}
	var query string
	switch {
	case base < 0:
		query = `
    INSERT INTO ytd_snapshots (employer_id, employee_id, year, snapshot, version, updated_at)
    VALUES ($1,$2,$3,$4,1,now())
    ON CONFLICT (employer_id, employee_id, year)
    DO UPDATE SET snapshot = EXCLUDED.snapshot, version = ytd_snapshots.version + 1, updated_at = now()
  `
	case base == 0:
		query = `
    INSERT INTO ytd_snapshots (employer_id, employee_id, year, snapshot, version, updated_at)
    VALUES ($1,$2,$3,$4,1,now())
    ON CONFLICT (employer_id, employee_id, year) DO NOTHING
  `
	default:
		query = `
    UPDATE ytd_snapshots
    SET snapshot = $4, version = version + 1, updated_at = now()
    WHERE employer_id = $1 AND employee_id = $2 AND year = $3 AND version = $5
  `
		args = append(args, int64(base))
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: employee %s year %d", ErrYtdConflict, p.EmployeeID, p.YtdAfter.Year)
	}
	return nil
}

func (s *Store) GetPaycheck(ctx context.Context, id PaycheckID) (PaycheckRecord, error) {
	var rec PaycheckRecord
	var resultJSON, auditJSON []byte
	var reversalOf, voidedBy *string
	err := s.DB.QueryRow(ctx, `
    SELECT p.status, p.reversal_of, p.voided_by, p.created_at, p.result, a.audit
    FROM paychecks p
    JOIN paycheck_audits a ON a.paycheck_id = p.id
    WHERE p.id = $1
  `, id).Scan(&rec.Status, &reversalOf, &voidedBy, &rec.CreatedAt, &resultJSON, &auditJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaycheckRecord{}, ErrPaycheckNotFound
	}
	if err != nil {
		return PaycheckRecord{}, err
	}
	if reversalOf != nil {
		rec.ReversalOf = PaycheckID(*reversalOf)
	}
	if voidedBy != nil {
		rec.VoidedBy = PaycheckID(*voidedBy)
	}
	if err := json.Unmarshal(resultJSON, &rec.Computation.Paycheck); err != nil {
		return PaycheckRecord{}, fmt.Errorf("decode paycheck %s: %w", id, err)
	}
	if err := json.Unmarshal(auditJSON, &rec.Computation.Audit); err != nil {
		return PaycheckRecord{}, fmt.Errorf("decode audit %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) GetAudit(ctx context.Context, id PaycheckID) (PaycheckAudit, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT audit FROM paycheck_audits WHERE paycheck_id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaycheckAudit{}, ErrAuditNotFound
	}
	if err != nil {
		return PaycheckAudit{}, err
	}
	var audit PaycheckAudit
	if err := json.Unmarshal(raw, &audit); err != nil {
		return PaycheckAudit{}, fmt.Errorf("decode audit %s: %w", id, err)
	}
	return audit, nil
}

// LoadYtd returns an empty snapshot for the year when none is stored.
func (s *Store) LoadYtd(ctx context.Context, employerID EmployerID, employeeID EmployeeID, year int) (YtdSnapshot, error) {
	snap, _, err := s.LoadYtdVersion(ctx, employerID, employeeID, year)
	return snap, err
}

// LoadYtdVersion also reports the row version a later write must still see.
func (s *Store) LoadYtdVersion(ctx context.Context, employerID EmployerID, employeeID EmployeeID, year int) (YtdSnapshot, YtdVersion, error) {
	var raw []byte
	var version int64
	err := s.DB.QueryRow(ctx, `
    SELECT snapshot, version FROM ytd_snapshots
    WHERE employer_id = $1 AND employee_id = $2 AND year = $3
  `, employerID, employeeID, year).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewYtdSnapshot(year), 0, nil
	}
	if err != nil {
		return YtdSnapshot{}, 0, err
	}
	var snap YtdSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return YtdSnapshot{}, 0, fmt.Errorf("decode ytd: %w", err)
	}
	return snap.Clone(), YtdVersion(version), nil
}

func (s *Store) ListEarningDefinitions(ctx context.Context, employerID EmployerID) ([]EarningDefinition, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT definition FROM earning_definitions
    WHERE employer_id = $1
    ORDER BY code
  `, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []EarningDefinition
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var def EarningDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("decode earning definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) ListDeductionPlans(ctx context.Context, employerID EmployerID) ([]DeductionPlan, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT plan FROM deduction_plans
    WHERE employer_id = $1 AND active
    ORDER BY id
  `, employerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []DeductionPlan
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var plan DeductionPlan
		if err := json.Unmarshal(raw, &plan); err != nil {
			return nil, fmt.Errorf("decode deduction plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// LoadPayslip returns nil content when no payslip has been rendered yet.
func (s *Store) LoadPayslip(ctx context.Context, id PaycheckID) ([]byte, error) {
	var content []byte
	err := s.DB.QueryRow(ctx, `SELECT content FROM payslips WHERE paycheck_id = $1`, id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return content, err
}

func (s *Store) SavePayslip(ctx context.Context, id PaycheckID, content []byte) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO payslips (paycheck_id, content)
    VALUES ($1,$2)
    ON CONFLICT (paycheck_id) DO UPDATE SET content = EXCLUDED.content, created_at = now()
  `, id, content)
	return err
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		slog.Warn("payroll rollback failed", "err", err)
	}
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
