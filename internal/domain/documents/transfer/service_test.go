package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
	"provision/internal/domain/audit"
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/ledger"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
)

// --- transactional fakes ---

// snapshotter lets the fake tx manager roll stores back on error.
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

// --- ledger store ---

type memLedgerRepo struct {
	rows map[string]*ledger.LocationStock
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{rows: make(map[string]*ledger.LocationStock)}
}

func stockKey(locationID, itemID id.ID) string {
	return locationID.String() + "|" + itemID.String()
}

func (m *memLedgerRepo) snapshot() any {
	cp := make(map[string]*ledger.LocationStock, len(m.rows))
	for k, v := range m.rows {
		row := *v
		cp[k] = &row
	}
	return cp
}

func (m *memLedgerRepo) restore(s any) {
	m.rows = s.(map[string]*ledger.LocationStock)
}

func (m *memLedgerRepo) Get(_ context.Context, locationID, itemID id.ID) (*ledger.LocationStock, error) {
	row, ok := m.rows[stockKey(locationID, itemID)]
	if !ok {
		return nil, apperror.NewNotFound("location_stock", stockKey(locationID, itemID))
	}
	cp := *row
	return &cp, nil
}

func (m *memLedgerRepo) GetForUpdate(ctx context.Context, locationID, itemID id.ID) (*ledger.LocationStock, error) {
	return m.Get(ctx, locationID, itemID)
}

func (m *memLedgerRepo) Upsert(_ context.Context, stock *ledger.LocationStock) error {
	cp := *stock
	m.rows[stockKey(stock.LocationID, stock.ItemID)] = &cp
	return nil
}

func (m *memLedgerRepo) ListByLocation(_ context.Context, locationID id.ID) ([]*ledger.LocationStock, error) {
	var out []*ledger.LocationStock
	for _, row := range m.rows {
		if row.LocationID == locationID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLedgerRepo) LocationValue(_ context.Context, locationID id.ID) (types.Money, error) {
	total := types.Zero()
	for _, row := range m.rows {
		if row.LocationID == locationID {
			total = total.Add(row.OnHand.Mul(row.WAC))
		}
	}
	return types.RoundMoney(total), nil
}

func (m *memLedgerRepo) SetLevels(_ context.Context, locationID, itemID id.ID, minQty, maxQty *types.Quantity) error {
	row, ok := m.rows[stockKey(locationID, itemID)]
	if !ok {
		return apperror.NewNotFound("location_stock", stockKey(locationID, itemID))
	}
	row.MinQty = minQty
	row.MaxQty = maxQty
	return nil
}

// --- transfer store ---

type memTransferRepo struct {
	docs  map[id.ID]*Transfer
	lines map[id.ID][]Line
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{docs: make(map[id.ID]*Transfer), lines: make(map[id.ID][]Line)}
}

type transferSnap struct {
	docs  map[id.ID]*Transfer
	lines map[id.ID][]Line
}

func (m *memTransferRepo) snapshot() any {
	docs := make(map[id.ID]*Transfer, len(m.docs))
	for k, v := range m.docs {
		cp := *v
		docs[k] = &cp
	}
	lines := make(map[id.ID][]Line, len(m.lines))
	for k, v := range m.lines {
		lines[k] = append([]Line(nil), v...)
	}
	return transferSnap{docs: docs, lines: lines}
}

func (m *memTransferRepo) restore(s any) {
	snap := s.(transferSnap)
	m.docs = snap.docs
	m.lines = snap.lines
}

func (m *memTransferRepo) Create(_ context.Context, doc *Transfer) error {
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memTransferRepo) GetByID(_ context.Context, docID id.ID) (*Transfer, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("transfer", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (m *memTransferRepo) GetLines(_ context.Context, docID id.ID) ([]Line, error) {
	return append([]Line(nil), m.lines[docID]...), nil
}

func (m *memTransferRepo) SaveLines(_ context.Context, docID id.ID, lines []Line) error {
	m.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (m *memTransferRepo) List(_ context.Context, _ ListFilter) (domain.ListResult[*Transfer], error) {
	return domain.ListResult[*Transfer]{}, nil
}

func (m *memTransferRepo) ClaimForApproval(_ context.Context, docID, approvedBy id.ID, approvedAt time.Time) (bool, error) {
	doc, ok := m.docs[docID]
	if !ok || doc.Status != StatusPendingApproval {
		return false, nil
	}
	doc.Status = StatusApproved
	doc.ApprovedBy = &approvedBy
	doc.ApprovedAt = &approvedAt
	return true, nil
}

func (m *memTransferRepo) MarkCompleted(_ context.Context, docID id.ID, transferredAt time.Time) error {
	doc, ok := m.docs[docID]
	if !ok {
		return apperror.NewNotFound("transfer", docID.String())
	}
	doc.Status = StatusCompleted
	doc.TransferredAt = &transferredAt
	return nil
}

func (m *memTransferRepo) SumInByPeriodLocation(_ context.Context, _, _ id.ID) (types.Money, error) {
	return types.Zero(), nil
}

func (m *memTransferRepo) SumOutByPeriodLocation(_ context.Context, _, _ id.ID) (types.Money, error) {
	return types.Zero(), nil
}

// --- master data fakes ---

type memLocationRepo struct {
	location.Repository
	byID map[id.ID]*location.Location
}

func (m *memLocationRepo) GetByID(_ context.Context, locID id.ID) (*location.Location, error) {
	loc, ok := m.byID[locID]
	if !ok {
		return nil, apperror.NewNotFound("location", locID.String())
	}
	return loc, nil
}

func (m *memLocationRepo) ListActive(_ context.Context) ([]*location.Location, error) {
	var out []*location.Location
	for _, loc := range m.byID {
		if loc.IsActive {
			out = append(out, loc)
		}
	}
	return out, nil
}

type memItemRepo struct {
	item.Repository
}

func (m *memItemRepo) GetByID(_ context.Context, itemID id.ID) (*item.Item, error) {
	return nil, apperror.NewNotFound("item", itemID.String())
}

type memPeriodRepo struct {
	period.Repository
	open *period.Period
}

func (m *memPeriodRepo) CurrentOpen(_ context.Context) (*period.Period, error) {
	if m.open == nil {
		return nil, apperror.NewNotFound("period", "open")
	}
	return m.open, nil
}

type noopAuditor struct{}

func (noopAuditor) Record(_ context.Context, _ audit.Entry) error { return nil }

type memSettingsRepo struct {
	notification.Repository
}

// Every event has one unconditional subscription so dispatched events
// reach the test sink.
func (memSettingsRepo) ListEnabledByEvent(_ context.Context, event notification.Event) ([]*notification.Setting, error) {
	return []*notification.Setting{
		notification.NewSetting("on "+string(event), event, "", []string{"ops@example.com"}),
	}, nil
}

// captureSink feeds dispatched events to a channel. Dispatch is
// asynchronous, so tests receive with a deadline.
type captureSink struct {
	events chan notification.Event
}

func newCaptureSink() *captureSink {
	return &captureSink{events: make(chan notification.Event, 16)}
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Send(_ context.Context, msg notification.Message) error {
	s.events <- msg.Event
	return nil
}

// --- fixture ---

type fixture struct {
	svc      *Service
	ledger   *ledger.Service
	repo     *memTransferRepo
	events   *captureSink
	from, to *location.Location
	periodID id.ID
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledgerRepo := newMemLedgerRepo()
	transferRepo := newMemTransferRepo()
	txm := &fakeTxManager{stores: []snapshotter{ledgerRepo, transferRepo}}

	from := location.NewLocation("LOC-1", "Central Store", location.TypeCentral)
	to := location.NewLocation("LOC-2", "Main Kitchen", location.TypeKitchen)
	locations := &memLocationRepo{byID: map[id.ID]*location.Location{from.ID: from, to.ID: to}}

	open := period.NewPeriod("August 2026", date(2026, 8, 1), date(2026, 8, 31))
	periods := period.NewService(&memPeriodRepo{open: open}, locations, nil, txm)

	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)
	events := newCaptureSink()
	dispatcher := notification.NewDispatcher(memSettingsRepo{}, rules, events)

	ledgerSvc := ledger.NewService(ledgerRepo)
	svc := NewService(transferRepo, ledgerSvc, periods, locations, &memItemRepo{},
		nil, txm, noopAuditor{}, dispatcher)

	user := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleSupervisor,
		LocationIDs: []string{from.ID.String(), to.ID.String()},
	}

	return &fixture{
		svc:      svc,
		ledger:   ledgerSvc,
		repo:     transferRepo,
		events:   events,
		from:     from,
		to:       to,
		periodID: open.ID,
		ctx:      appctx.WithUser(context.Background(), user),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func d(s string) types.Quantity {
	return types.MustDecimal(s)
}

func (f *fixture) seedStock(t *testing.T, locID, itemID id.ID, qty, price string) {
	t.Helper()
	_, err := f.ledger.Receive(f.ctx, locID, itemID, d(qty), d(price))
	require.NoError(t, err)
}

func (f *fixture) newPending(t *testing.T, itemID id.ID, qty string) *Transfer {
	t.Helper()
	doc := NewTransfer(f.periodID, f.from.ID, f.to.ID)
	doc.Number = "TRF-2026-00001"
	doc.AddLine(itemID, d(qty))
	created, err := f.svc.Create(f.ctx, doc)
	require.NoError(t, err)
	return created
}

// waitForEvent blocks until the sink delivers the wanted event or the
// deadline passes. Dispatch is asynchronous; unrelated events are drained.
func (f *fixture) waitForEvent(t *testing.T, want notification.Event) bool {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.events.events:
			if got == want {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// --- tests ---

func TestCreate_CapturesWACWithoutMovingStock(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "100", "6.00")

	doc := f.newPending(t, itm, "40")

	assert.Equal(t, StatusPendingApproval, doc.Status)
	assert.True(t, doc.Lines[0].WACAtTransfer.Equal(d("6.00")))
	assert.True(t, doc.TotalValue.Equal(d("240.00")))

	// nothing moved yet
	onHand, err := f.ledger.OnHand(f.ctx, f.from.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("100")))
	onHand, err = f.ledger.OnHand(f.ctx, f.to.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero())
}

func TestCreate_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "10", "6.00")

	doc := NewTransfer(f.periodID, f.from.ID, f.to.ID)
	doc.Number = "TRF-2026-00002"
	doc.AddLine(itm, d("11"))

	_, err := f.svc.Create(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestApprove_MovesStockAndConservesTotals(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "100", "6.00")
	// destination already holds the item at a different cost
	f.seedStock(t, f.to.ID, itm, "10", "9.00")
	doc := f.newPending(t, itm, "40")

	approved, err := f.svc.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.TransferredAt)

	fromStock, err := f.ledger.Position(f.ctx, f.from.ID, itm)
	require.NoError(t, err)
	toStock, err := f.ledger.Position(f.ctx, f.to.ID, itm)
	require.NoError(t, err)

	// total on hand across locations is conserved
	total := fromStock.OnHand.Add(toStock.OnHand)
	assert.True(t, total.Equal(d("110")), "total = %s", total)
	assert.True(t, fromStock.OnHand.Equal(d("60")))
	assert.True(t, toStock.OnHand.Equal(d("50")))

	// source WAC unchanged; destination re-averages with the captured WAC:
	// (10*9.00 + 40*6.00) / 50 = 6.60
	assert.True(t, fromStock.WAC.Equal(d("6.00")))
	assert.True(t, toStock.WAC.Equal(d("6.60")), "to wac = %s", toStock.WAC)
}

func TestApprove_RevalidationFailureKeepsPendingAndStock(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "50", "6.00")
	doc := f.newPending(t, itm, "40")

	// stock is consumed between creation and approval
	_, err := f.ledger.Deduct(f.ctx, f.from.ID, itm, d("30"))
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// the transfer survives the failed approval unchanged
	after, err := f.svc.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, after.Status)
	assert.Nil(t, after.ApprovedAt)

	// and no partial movement happened
	onHand, err := f.ledger.OnHand(f.ctx, f.from.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("20")))
	onHand, err = f.ledger.OnHand(f.ctx, f.to.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero())
}

func TestApprove_SecondApprovalLosesWithInvalidStatus(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "100", "6.00")
	doc := f.newPending(t, itm, "40")

	_, err := f.svc.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStatus))

	// exactly one stock movement happened
	onHand, err := f.ledger.OnHand(f.ctx, f.from.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("60")), "on_hand = %s", onHand)
	onHand, err = f.ledger.OnHand(f.ctx, f.to.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("40")))
}

func TestApprove_PublishesLowStockForDrainedSource(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "10", "4.00")
	minQty := d("8")
	require.NoError(t, f.ledger.SetLevels(f.ctx, f.from.ID, itm, &minQty, nil))

	doc := f.newPending(t, itm, "5")
	_, err := f.svc.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	// 5 on hand against a minimum of 8
	assert.True(t, f.waitForEvent(t, notification.EventStockBelowMin),
		"no stock_below_min after the approval drained the source")
}

func TestApprove_NoLowStockEventAboveMin(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "50", "4.00")
	minQty := d("8")
	require.NoError(t, f.ledger.SetLevels(f.ctx, f.from.ID, itm, &minQty, nil))

	doc := f.newPending(t, itm, "5")
	_, err := f.svc.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	// dispatch is asynchronous; let it settle, then inspect what arrived
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case got := <-f.events.events:
			assert.NotEqual(t, notification.EventStockBelowMin, got)
		default:
			return
		}
	}
}

func TestApprove_RequiresSupervisor(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, f.from.ID, itm, "100", "6.00")
	doc := f.newPending(t, itm, "10")

	staff := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleStaff,
		LocationIDs: []string{f.from.ID.String()},
	}
	_, err := f.svc.Approve(appctx.WithUser(context.Background(), staff), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestCreate_RejectsSameSourceAndDestination(t *testing.T) {
	f := newFixture(t)
	doc := NewTransfer(f.periodID, f.from.ID, f.from.ID)
	doc.Number = "TRF-2026-00003"
	doc.AddLine(id.New(), d("1"))

	_, err := f.svc.Create(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
