package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/audit"
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/documents/delivery"
	"provision/internal/domain/documents/issue"
	"provision/internal/domain/documents/transfer"
	"provision/internal/domain/ledger"
	"provision/internal/domain/ncr"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
)

// --- transactional fakes ---

type snapshotter interface {
	snapshot() any
	restore(any)
}

type fakeTxManager struct {
	stores []snapshotter
}

func (m *fakeTxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	snaps := make([]any, len(m.stores))
	for i, s := range m.stores {
		snaps[i] = s.snapshot()
	}
	if err := fn(ctx); err != nil {
		for i, s := range m.stores {
			s.restore(snaps[i])
		}
		return err
	}
	return nil
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *fakeTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, fn)
}

// --- reconciliation store ---

type memReconRepo struct {
	rows     map[string]*Reconciliation
	failSave map[id.ID]bool
}

func newMemReconRepo() *memReconRepo {
	return &memReconRepo{rows: make(map[string]*Reconciliation), failSave: make(map[id.ID]bool)}
}

func reconKey(periodID, locationID id.ID) string {
	return periodID.String() + "|" + locationID.String()
}

func (m *memReconRepo) snapshot() any {
	cp := make(map[string]*Reconciliation, len(m.rows))
	for k, v := range m.rows {
		row := *v
		cp[k] = &row
	}
	return cp
}

func (m *memReconRepo) restore(s any) {
	m.rows = s.(map[string]*Reconciliation)
}

func (m *memReconRepo) GetSaved(_ context.Context, periodID, locationID id.ID) (*Reconciliation, error) {
	row, ok := m.rows[reconKey(periodID, locationID)]
	if !ok {
		return nil, apperror.NewNotFound("reconciliation", reconKey(periodID, locationID))
	}
	cp := *row
	return &cp, nil
}

func (m *memReconRepo) Save(_ context.Context, rec *Reconciliation) error {
	if m.failSave[rec.LocationID] {
		return apperror.NewInternal(errors.New("storage failure"))
	}
	cp := *rec
	m.rows[reconKey(rec.PeriodID, rec.LocationID)] = &cp
	return nil
}

func (m *memReconRepo) ListSavedByPeriod(_ context.Context, periodID id.ID) ([]*Reconciliation, error) {
	var out []*Reconciliation
	for _, row := range m.rows {
		if row.PeriodID == periodID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- period store ---

type memPeriodStore struct {
	period.Repository
	periods map[id.ID]*period.Period
	locRows []*period.PeriodLocation
}

func newMemPeriodStore() *memPeriodStore {
	return &memPeriodStore{periods: make(map[id.ID]*period.Period)}
}

type periodSnap struct {
	periods map[id.ID]*period.Period
	locRows []*period.PeriodLocation
}

func (m *memPeriodStore) snapshot() any {
	periods := make(map[id.ID]*period.Period, len(m.periods))
	for k, v := range m.periods {
		cp := *v
		periods[k] = &cp
	}
	rows := make([]*period.PeriodLocation, len(m.locRows))
	for i, r := range m.locRows {
		cp := *r
		rows[i] = &cp
	}
	return periodSnap{periods: periods, locRows: rows}
}

func (m *memPeriodStore) restore(s any) {
	snap := s.(periodSnap)
	m.periods = snap.periods
	m.locRows = snap.locRows
}

func (m *memPeriodStore) Create(_ context.Context, p *period.Period) error {
	cp := *p
	m.periods[p.ID] = &cp
	return nil
}

func (m *memPeriodStore) GetByID(_ context.Context, periodID id.ID) (*period.Period, error) {
	p, ok := m.periods[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	cp := *p
	return &cp, nil
}

func (m *memPeriodStore) GetForUpdate(ctx context.Context, periodID id.ID) (*period.Period, error) {
	return m.GetByID(ctx, periodID)
}

func (m *memPeriodStore) CurrentOpen(_ context.Context) (*period.Period, error) {
	for _, p := range m.periods {
		if p.IsOpen() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("period", "open")
}

func (m *memPeriodStore) MarkClosed(_ context.Context, periodID, closedBy id.ID, closedAt time.Time) error {
	p, ok := m.periods[periodID]
	if !ok {
		return apperror.NewNotFound("period", periodID.String())
	}
	if !p.IsOpen() {
		return apperror.NewConflict("period is not open")
	}
	p.Status = period.StatusClosed
	p.ClosedBy = &closedBy
	p.ClosedAt = &closedAt
	return nil
}

func (m *memPeriodStore) PreviousPeriod(_ context.Context, periodID id.ID) (*period.Period, error) {
	cur, ok := m.periods[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	var prev *period.Period
	for _, p := range m.periods {
		if p.StartDate.Before(cur.StartDate) && (prev == nil || p.StartDate.After(prev.StartDate)) {
			prev = p
		}
	}
	if prev == nil {
		return nil, apperror.NewNotFound("previous period", periodID.String())
	}
	cp := *prev
	return &cp, nil
}

func (m *memPeriodStore) CreateLocations(_ context.Context, rows []*period.PeriodLocation) error {
	for _, r := range rows {
		cp := *r
		m.locRows = append(m.locRows, &cp)
	}
	return nil
}

func (m *memPeriodStore) ListLocations(_ context.Context, periodID id.ID) ([]*period.PeriodLocation, error) {
	var out []*period.PeriodLocation
	for _, r := range m.locRows {
		if r.PeriodID == periodID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPeriodStore) CountNotReady(_ context.Context, periodID id.ID) (int, error) {
	n := 0
	for _, r := range m.locRows {
		if r.PeriodID == periodID && !r.IsReady() {
			n++
		}
	}
	return n, nil
}

func (m *memPeriodStore) markReady(periodID, locationID id.ID) {
	for _, r := range m.locRows {
		if r.PeriodID == periodID && r.LocationID == locationID {
			r.Status = period.LocationReady
		}
	}
}

// --- aggregate fakes ---

type memDeliveryRepo struct {
	delivery.Repository
	sums map[string]types.Money
}

func (m *memDeliveryRepo) SumByPeriodLocation(_ context.Context, periodID, locationID id.ID) (types.Money, error) {
	if v, ok := m.sums[reconKey(periodID, locationID)]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

type memIssueRepo struct {
	issue.Repository
	sums map[string]types.Money
}

func (m *memIssueRepo) SumByPeriodLocation(_ context.Context, periodID, locationID id.ID) (types.Money, error) {
	if v, ok := m.sums[reconKey(periodID, locationID)]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

type memTransferRepo struct {
	transfer.Repository
	in, out map[string]types.Money
}

func (m *memTransferRepo) SumInByPeriodLocation(_ context.Context, periodID, locationID id.ID) (types.Money, error) {
	if v, ok := m.in[reconKey(periodID, locationID)]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

func (m *memTransferRepo) SumOutByPeriodLocation(_ context.Context, periodID, locationID id.ID) (types.Money, error) {
	if v, ok := m.out[reconKey(periodID, locationID)]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

type memNCRRepo struct {
	ncr.Repository
	reports []*ncr.NCR
}

func (m *memNCRRepo) add(periodID, locationID id.ID, status ncr.Status, impact ncr.FinancialImpact, value string) {
	m.reports = append(m.reports, &ncr.NCR{
		PeriodID:        periodID,
		LocationID:      locationID,
		Status:          status,
		FinancialImpact: impact,
		Value:           types.MustDecimal(value),
	})
}

// SumResolvedByPeriodLocation mirrors the repository semantics: CREDITED
// counts as a credit and REJECTED as a loss before formal resolution,
// RESOLVED reports count by their recorded impact.
func (m *memNCRRepo) SumResolvedByPeriodLocation(_ context.Context, periodID, locationID id.ID, impact ncr.FinancialImpact) (types.Money, error) {
	outcome := ncr.StatusRejected
	if impact == ncr.ImpactCredit {
		outcome = ncr.StatusCredited
	}

	total := types.Zero()
	for _, r := range m.reports {
		if r.PeriodID != periodID || r.LocationID != locationID {
			continue
		}
		if r.Status == outcome || (r.Status == ncr.StatusResolved && r.FinancialImpact == impact) {
			total = total.Add(r.Value)
		}
	}
	return total, nil
}

func (m *memNCRRepo) CountOpenByPeriod(_ context.Context, periodID id.ID) (int, error) {
	count := 0
	for _, r := range m.reports {
		if r.PeriodID == periodID && (r.Status == ncr.StatusOpen || r.Status == ncr.StatusSent) {
			count++
		}
	}
	return count, nil
}

type memLedgerRepo struct {
	ledger.Repository
	values map[id.ID]types.Money
}

func (m *memLedgerRepo) LocationValue(_ context.Context, locationID id.ID) (types.Money, error) {
	if v, ok := m.values[locationID]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

// --- master data fakes ---

type memLocationRepo struct {
	location.Repository
	active []*location.Location
}

func (m *memLocationRepo) ListActive(_ context.Context) ([]*location.Location, error) {
	return m.active, nil
}

type memItemRepo struct {
	item.Repository
}

func (memItemRepo) ListActive(_ context.Context) ([]*item.Item, error) { return nil, nil }

type memPriceRepo struct {
	pricing.Repository
	locked map[id.ID]bool
}

func (m *memPriceRepo) ExistsForPeriod(_ context.Context, periodID id.ID) (bool, error) {
	return m.locked[periodID], nil
}

func (m *memPriceRepo) BulkInsert(_ context.Context, prices []*pricing.ItemPrice) error {
	if len(prices) > 0 {
		m.locked[prices[0].PeriodID] = true
	}
	return nil
}

type noopAuditor struct{}

func (noopAuditor) Record(_ context.Context, _ audit.Entry) error { return nil }

type memSettingsRepo struct {
	notification.Repository
}

func (memSettingsRepo) ListEnabledByEvent(_ context.Context, _ notification.Event) ([]*notification.Setting, error) {
	return nil, nil
}

// --- fixture ---

type fixture struct {
	svc         *Service
	reconRepo   *memReconRepo
	periodStore *memPeriodStore
	deliveries  *memDeliveryRepo
	issues      *memIssueRepo
	transfers   *memTransferRepo
	ncrs        *memNCRRepo
	ledgerRepo  *memLedgerRepo
	open        *period.Period
	loc1, loc2  *location.Location
	adminCtx    context.Context
	supCtx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reconRepo := newMemReconRepo()
	periodStore := newMemPeriodStore()
	txm := &fakeTxManager{stores: []snapshotter{reconRepo, periodStore}}

	loc1 := location.NewLocation("LOC-1", "Main Kitchen", location.TypeKitchen)
	loc2 := location.NewLocation("LOC-2", "Central Store", location.TypeCentral)
	locations := &memLocationRepo{active: []*location.Location{loc1, loc2}}

	pricingSvc := pricing.NewService(&memPriceRepo{locked: make(map[id.ID]bool)}, memItemRepo{})
	periods := period.NewService(periodStore, locations, pricingSvc, txm)

	open := period.NewPeriod("August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, periodStore.Create(context.Background(), open))
	require.NoError(t, periodStore.CreateLocations(context.Background(), []*period.PeriodLocation{
		{PeriodID: open.ID, LocationID: loc1.ID, Status: period.LocationNotReady},
		{PeriodID: open.ID, LocationID: loc2.ID, Status: period.LocationNotReady},
	}))

	deliveries := &memDeliveryRepo{sums: make(map[string]types.Money)}
	issues := &memIssueRepo{sums: make(map[string]types.Money)}
	transfers := &memTransferRepo{in: make(map[string]types.Money), out: make(map[string]types.Money)}
	ncrs := &memNCRRepo{}
	ledgerRepo := &memLedgerRepo{values: make(map[id.ID]types.Money)}

	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(memSettingsRepo{}, rules, notification.LogSink{})

	svc := NewService(ServiceConfig{
		Repo:       reconRepo,
		Periods:    periods,
		PeriodRepo: periodStore,
		Deliveries: deliveries,
		Issues:     issues,
		Transfers:  transfers,
		Ledger:     ledger.NewService(ledgerRepo),
		NCRs:       ncrs,
		TxManager:  txm,
		Auditor:    noopAuditor{},
		Dispatcher: dispatcher,
	})

	admin := &appctx.UserContext{UserID: id.New().String(), Role: appctx.RoleAdmin}
	sup := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleSupervisor,
		LocationIDs: []string{loc1.ID.String(), loc2.ID.String()},
	}

	return &fixture{
		svc:         svc,
		reconRepo:   reconRepo,
		periodStore: periodStore,
		deliveries:  deliveries,
		issues:      issues,
		transfers:   transfers,
		ncrs:        ncrs,
		ledgerRepo:  ledgerRepo,
		open:        open,
		loc1:        loc1,
		loc2:        loc2,
		adminCtx:    appctx.WithUser(context.Background(), admin),
		supCtx:      appctx.WithUser(context.Background(), sup),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func d(s string) types.Money {
	return types.MustDecimal(s)
}

// seedPriorPeriod creates a closed July period with a saved snapshot whose
// closing stock becomes the opening stock of the August period.
func (f *fixture) seedPriorPeriod(t *testing.T, locationID id.ID, closing string) {
	t.Helper()
	prior := period.NewPeriod("July 2026", date(2026, 7, 1), date(2026, 7, 31))
	prior.Status = period.StatusClosed
	require.NoError(t, f.periodStore.Create(context.Background(), prior))
	require.NoError(t, f.reconRepo.Save(context.Background(), &Reconciliation{
		PeriodID:     prior.ID,
		LocationID:   locationID,
		ClosingStock: d(closing),
		Status:       StatusSaved,
	}))
}

// --- tests ---

func TestGet_ComputesConsumptionFromMovements(t *testing.T) {
	f := newFixture(t)
	f.seedPriorPeriod(t, f.loc1.ID, "1000.00")
	f.deliveries.sums[reconKey(f.open.ID, f.loc1.ID)] = d("500.00")
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	rec, err := f.svc.Get(f.supCtx, f.open.ID, f.loc1.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusComputed, rec.Status)
	assert.True(t, rec.OpeningStock.Equal(d("1000.00")))
	assert.True(t, rec.Receipts.Equal(d("500.00")))
	assert.True(t, rec.ClosingStock.Equal(d("850.00")))
	// 1000 + 500 - 850 = 650
	assert.True(t, rec.Consumption.Equal(d("650.00")), "consumption = %s", rec.Consumption)
}

func TestGet_FirstPeriodOpensAtZero(t *testing.T) {
	f := newFixture(t)
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	rec, err := f.svc.Get(f.supCtx, f.open.ID, f.loc1.ID)
	require.NoError(t, err)

	assert.True(t, rec.OpeningStock.IsZero())
	assert.True(t, rec.Consumption.Equal(d("-850.00")))
}

func TestGet_FoldsNCROutcomesAndTransfers(t *testing.T) {
	f := newFixture(t)
	key := reconKey(f.open.ID, f.loc1.ID)
	f.seedPriorPeriod(t, f.loc1.ID, "1000.00")
	f.deliveries.sums[key] = d("500.00")
	f.transfers.in[key] = d("80.00")
	f.transfers.out[key] = d("30.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusResolved, ncr.ImpactLoss, "25.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusResolved, ncr.ImpactCredit, "40.00")
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	rec, err := f.svc.Get(f.supCtx, f.open.ID, f.loc1.ID)
	require.NoError(t, err)

	// 1000 + 500 + 80 - 30 - 850 + (25 - 40) = 685
	assert.True(t, rec.Consumption.Equal(d("685.00")), "consumption = %s", rec.Consumption)
}

func TestGet_CountsCreditedAndRejectedBeforeResolution(t *testing.T) {
	f := newFixture(t)
	f.seedPriorPeriod(t, f.loc1.ID, "1000.00")
	f.deliveries.sums[reconKey(f.open.ID, f.loc1.ID)] = d("500.00")
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	// supplier outcomes known, reports not yet formally resolved
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusCredited, ncr.ImpactNone, "40.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusRejected, ncr.ImpactNone, "25.00")
	// still with the supplier, contributes nothing yet
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusOpen, ncr.ImpactNone, "99.00")

	rec, err := f.svc.Get(f.supCtx, f.open.ID, f.loc1.ID)
	require.NoError(t, err)

	assert.True(t, rec.NCRCredits.Equal(d("40.00")), "credits = %s", rec.NCRCredits)
	assert.True(t, rec.NCRLosses.Equal(d("25.00")), "losses = %s", rec.NCRLosses)
	// 1000 + 500 - 850 + (25 - 40) = 635
	assert.True(t, rec.Consumption.Equal(d("635.00")), "consumption = %s", rec.Consumption)
}

func TestGet_SavedSnapshotWins(t *testing.T) {
	f := newFixture(t)
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	_, err := f.svc.Save(f.supCtx, f.open.ID, f.loc1.ID, AdjustmentInput{})
	require.NoError(t, err)

	// stock keeps moving after the save
	f.ledgerRepo.values[f.loc1.ID] = d("300.00")

	rec, err := f.svc.Get(f.supCtx, f.open.ID, f.loc1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, rec.Status)
	assert.True(t, rec.ClosingStock.Equal(d("850.00")))
}

func TestGet_DeniedWithoutLocationGrant(t *testing.T) {
	f := newFixture(t)
	stranger := &appctx.UserContext{UserID: id.New().String(), Role: appctx.RoleSupervisor}
	_, err := f.svc.Get(appctx.WithUser(context.Background(), stranger), f.open.ID, f.loc1.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLocationAccessDenied))
}

func TestSave_AppliesManualAdjustments(t *testing.T) {
	f := newFixture(t)
	f.seedPriorPeriod(t, f.loc1.ID, "1000.00")
	f.deliveries.sums[reconKey(f.open.ID, f.loc1.ID)] = d("500.00")
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")

	rec, err := f.svc.Save(f.supCtx, f.open.ID, f.loc1.ID, AdjustmentInput{
		BackCharges:   d("50.00"),
		Credits:       d("20.00"),
		Condemnations: d("10.00"),
		Adjustments:   d("5.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSaved, rec.Status)
	require.NotNil(t, rec.SavedBy)
	require.NotNil(t, rec.SavedAt)
	// 650 + (50 - 20 - 10 + 5) = 675
	assert.True(t, rec.Consumption.Equal(d("675.00")), "consumption = %s", rec.Consumption)

	stored, err := f.reconRepo.GetSaved(context.Background(), f.open.ID, f.loc1.ID)
	require.NoError(t, err)
	assert.True(t, stored.Consumption.Equal(d("675.00")))
}

func TestSave_RejectsNegativeFigures(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Save(f.supCtx, f.open.ID, f.loc1.ID, AdjustmentInput{Credits: d("-1.00")})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSave_RefusedOnClosedPeriod(t *testing.T) {
	f := newFixture(t)
	f.open.Status = period.StatusClosed
	f.periodStore.periods[f.open.ID].Status = period.StatusClosed

	_, err := f.svc.Save(f.supCtx, f.open.ID, f.loc1.ID, AdjustmentInput{})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed))
}

func TestClose_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Close(f.supCtx, f.open.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestClose_BlockedUntilAllLocationsReady(t *testing.T) {
	f := newFixture(t)
	f.periodStore.markReady(f.open.ID, f.loc1.ID)

	_, err := f.svc.Close(f.adminCtx, f.open.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "PERIOD_NOT_READY"))

	// the period survives the refused close untouched
	p, err := f.periodStore.GetByID(context.Background(), f.open.ID)
	require.NoError(t, err)
	assert.True(t, p.IsOpen())
}

func TestClose_SnapshotsAllLocationsAndOpensNextPeriod(t *testing.T) {
	f := newFixture(t)
	f.periodStore.markReady(f.open.ID, f.loc1.ID)
	f.periodStore.markReady(f.open.ID, f.loc2.ID)
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")
	f.ledgerRepo.values[f.loc2.ID] = d("120.00")
	f.deliveries.sums[reconKey(f.open.ID, f.loc1.ID)] = d("500.00")

	// two still with the supplier; settled ones do not warn
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusOpen, ncr.ImpactNone, "10.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusSent, ncr.ImpactNone, "15.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusCredited, ncr.ImpactNone, "20.00")
	f.ncrs.add(f.open.ID, f.loc1.ID, ncr.StatusResolved, ncr.ImpactLoss, "5.00")

	// one location saved its reconciliation by hand beforehand
	saved, err := f.svc.Save(f.supCtx, f.open.ID, f.loc1.ID, AdjustmentInput{BackCharges: d("50.00")})
	require.NoError(t, err)

	result, err := f.svc.Close(f.adminCtx, f.open.ID)
	require.NoError(t, err)

	assert.Equal(t, period.StatusClosed, result.Period.Status)
	require.NotNil(t, result.Period.ClosedAt)
	assert.Len(t, result.Reconciliations, 2)

	// the manual save is kept, not recomputed
	stored, err := f.reconRepo.GetSaved(context.Background(), f.open.ID, f.loc1.ID)
	require.NoError(t, err)
	assert.True(t, stored.Consumption.Equal(saved.Consumption))

	// the untouched location got a snapshot during close
	other, err := f.reconRepo.GetSaved(context.Background(), f.open.ID, f.loc2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, other.Status)
	assert.True(t, other.ClosingStock.Equal(d("120.00")))

	// open NCRs warn but never block
	assert.Equal(t, 2, result.OpenNCRCount)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "2 open NCR")

	// the next month is open for posting
	require.NotNil(t, result.NextPeriod)
	assert.Equal(t, "September 2026", result.NextPeriod.Name)
	next, err := f.periodStore.CurrentOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.NextPeriod.ID, next.ID)

	// and its opening stock reads from the saved closing stock
	rec, err := f.svc.Get(f.supCtx, next.ID, f.loc2.ID)
	require.NoError(t, err)
	assert.True(t, rec.OpeningStock.Equal(d("120.00")))
}

func TestClose_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.periodStore.markReady(f.open.ID, f.loc1.ID)
	f.periodStore.markReady(f.open.ID, f.loc2.ID)
	f.ledgerRepo.values[f.loc1.ID] = d("850.00")
	f.reconRepo.failSave[f.loc2.ID] = true

	_, err := f.svc.Close(f.adminCtx, f.open.ID)
	require.Error(t, err)

	// nothing committed: period still open, no snapshots, no next period
	p, err := f.periodStore.GetByID(context.Background(), f.open.ID)
	require.NoError(t, err)
	assert.True(t, p.IsOpen())

	_, err = f.reconRepo.GetSaved(context.Background(), f.open.ID, f.loc1.ID)
	assert.True(t, apperror.IsNotFound(err))

	open, err := f.periodStore.CurrentOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.open.ID, open.ID)
}

func TestClose_SecondCloseRefused(t *testing.T) {
	f := newFixture(t)
	f.periodStore.markReady(f.open.ID, f.loc1.ID)
	f.periodStore.markReady(f.open.ID, f.loc2.ID)

	_, err := f.svc.Close(f.adminCtx, f.open.ID)
	require.NoError(t, err)

	_, err = f.svc.Close(f.adminCtx, f.open.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStatus))
}
