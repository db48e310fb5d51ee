package payroll

import "context"

// YtdVersion identifies the stored YTD row a computation started from. Zero
// means no row existed yet.
type YtdVersion int64

// ytdUnchecked marks a computation whose prior YTD came from the caller;
// recording it overwrites the stored snapshot without a version check.
const ytdUnchecked YtdVersion = -1

// PendingPaycheck is a computation waiting to be recorded together with the
// YTD version it was computed against.
type PendingPaycheck struct {
	Computation PaycheckComputation
	BaseVersion YtdVersion
}

type StoreAPI interface {
	// RecordPaychecks stores every paycheck, its audit and the new YTD
	// snapshot in one transaction. A snapshot whose stored version moved
	// past BaseVersion fails the whole call with ErrYtdConflict.
	RecordPaychecks(ctx context.Context, batch []PendingPaycheck) error
	RecordVoid(ctx context.Context, originalID PaycheckID, reversal PendingPaycheck) error
	GetPaycheck(ctx context.Context, id PaycheckID) (PaycheckRecord, error)
	GetAudit(ctx context.Context, id PaycheckID) (PaycheckAudit, error)
	LoadYtd(ctx context.Context, employerID EmployerID, employeeID EmployeeID, year int) (YtdSnapshot, error)
	LoadYtdVersion(ctx context.Context, employerID EmployerID, employeeID EmployeeID, year int) (YtdSnapshot, YtdVersion, error)
	ListEarningDefinitions(ctx context.Context, employerID EmployerID) ([]EarningDefinition, error)
	ListDeductionPlans(ctx context.Context, employerID EmployerID) ([]DeductionPlan, error)
	LoadPayslip(ctx context.Context, id PaycheckID) ([]byte, error)
	SavePayslip(ctx context.Context, id PaycheckID, content []byte) error
}
