package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
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
	"provision/internal/domain/catalogs/supplier"
	"provision/internal/domain/ledger"
	"provision/internal/domain/ncr"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
	"provision/pkg/numerator"
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
	return nil
}

// --- delivery store ---

type memDeliveryRepo struct {
	docs  map[id.ID]*Delivery
	lines map[id.ID][]Line
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{docs: make(map[id.ID]*Delivery), lines: make(map[id.ID][]Line)}
}

type deliverySnap struct {
	docs  map[id.ID]*Delivery
	lines map[id.ID][]Line
}

func (m *memDeliveryRepo) snapshot() any {
	docs := make(map[id.ID]*Delivery, len(m.docs))
	for k, v := range m.docs {
		cp := *v
		docs[k] = &cp
	}
	lines := make(map[id.ID][]Line, len(m.lines))
	for k, v := range m.lines {
		lines[k] = append([]Line(nil), v...)
	}
	return deliverySnap{docs: docs, lines: lines}
}

func (m *memDeliveryRepo) restore(s any) {
	snap := s.(deliverySnap)
	m.docs = snap.docs
	m.lines = snap.lines
}

func (m *memDeliveryRepo) Create(_ context.Context, doc *Delivery) error {
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDeliveryRepo) GetByID(_ context.Context, docID id.ID) (*Delivery, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("delivery", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (m *memDeliveryRepo) GetByNumber(_ context.Context, number string) (*Delivery, error) {
	for _, doc := range m.docs {
		if doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("delivery", number)
}

func (m *memDeliveryRepo) GetLines(_ context.Context, docID id.ID) ([]Line, error) {
	return append([]Line(nil), m.lines[docID]...), nil
}

func (m *memDeliveryRepo) SaveLines(_ context.Context, docID id.ID, lines []Line) error {
	m.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (m *memDeliveryRepo) List(_ context.Context, _ ListFilter) (domain.ListResult[*Delivery], error) {
	return domain.ListResult[*Delivery]{}, nil
}

func (m *memDeliveryRepo) SumByPeriodLocation(_ context.Context, _, _ id.ID) (types.Money, error) {
	return types.Zero(), nil
}

// --- NCR store ---

type memNCRRepo struct {
	ncr.Repository
	reports map[id.ID]*ncr.NCR
}

func newMemNCRRepo() *memNCRRepo {
	return &memNCRRepo{reports: make(map[id.ID]*ncr.NCR)}
}

func (m *memNCRRepo) snapshot() any {
	cp := make(map[id.ID]*ncr.NCR, len(m.reports))
	for k, v := range m.reports {
		r := *v
		cp[k] = &r
	}
	return cp
}

func (m *memNCRRepo) restore(s any) {
	m.reports = s.(map[id.ID]*ncr.NCR)
}

func (m *memNCRRepo) Create(_ context.Context, report *ncr.NCR) error {
	cp := *report
	m.reports[report.ID] = &cp
	return nil
}

// --- price store ---

type memPriceRepo struct {
	pricing.Repository
	prices map[string]*pricing.ItemPrice
}

func priceKey(periodID, itemID id.ID) string {
	return periodID.String() + "|" + itemID.String()
}

func (m *memPriceRepo) Get(_ context.Context, periodID, itemID id.ID) (*pricing.ItemPrice, error) {
	price, ok := m.prices[priceKey(periodID, itemID)]
	if !ok {
		return nil, apperror.NewNotFound("item_price", itemID.String())
	}
	return price, nil
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

type memSupplierRepo struct {
	supplier.Repository
	byID map[id.ID]*supplier.Supplier
}

func (m *memSupplierRepo) GetByID(_ context.Context, supID id.ID) (*supplier.Supplier, error) {
	sup, ok := m.byID[supID]
	if !ok {
		return nil, apperror.NewNotFound("supplier", supID.String())
	}
	return sup, nil
}

type memItemRepo struct {
	item.Repository
	byID map[id.ID]*item.Item
}

func (m *memItemRepo) GetByID(_ context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := m.byID[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return it, nil
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

func (memSettingsRepo) ListEnabledByEvent(_ context.Context, _ notification.Event) ([]*notification.Setting, error) {
	return nil, nil
}

// seqRow and seqQuerier simulate the sys_sequences UPSERT for the numerator.
type seqRow struct {
	val int64
}

func (r *seqRow) Scan(dest ...any) error {
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = r.val
		}
	}
	return nil
}

type seqQuerier struct {
	mu  sync.Mutex
	val int64
}

func (q *seqQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.mu.Lock()
	defer q.mu.Unlock()
	var inc int64 = 1
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			inc = v
		}
	}
	q.val += inc
	return &seqRow{val: q.val}
}

// --- fixture ---

type fixture struct {
	svc      *Service
	ledger   *ledger.Service
	repo     *memDeliveryRepo
	ncrs     *memNCRRepo
	loc      *location.Location
	sup      *supplier.Supplier
	itemA    *item.Item
	itemB    *item.Item
	periodID id.ID
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledgerRepo := newMemLedgerRepo()
	deliveryRepo := newMemDeliveryRepo()
	ncrRepo := newMemNCRRepo()
	txm := &fakeTxManager{stores: []snapshotter{ledgerRepo, deliveryRepo, ncrRepo}}

	loc := location.NewLocation("LOC-1", "Main Kitchen", location.TypeKitchen)
	locations := &memLocationRepo{byID: map[id.ID]*location.Location{loc.ID: loc}}

	sup := supplier.NewSupplier("SUP-1", "Fresh Produce Co")
	suppliers := &memSupplierRepo{byID: map[id.ID]*supplier.Supplier{sup.ID: sup}}

	itemA := item.NewItem("ITM-1", "Chicken Breast", item.UnitKG, d("8.50"))
	itemB := item.NewItem("ITM-2", "Whole Milk", item.UnitLitre, d("1.15"))
	items := &memItemRepo{byID: map[id.ID]*item.Item{itemA.ID: itemA, itemB.ID: itemB}}

	open := period.NewPeriod("August 2026", date(2026, 8, 1), date(2026, 8, 31))
	priceRepo := &memPriceRepo{prices: map[string]*pricing.ItemPrice{
		priceKey(open.ID, itemA.ID): {PeriodID: open.ID, ItemID: itemA.ID, ExpectedPrice: d("8.50")},
		priceKey(open.ID, itemB.ID): {PeriodID: open.ID, ItemID: itemB.ID, ExpectedPrice: d("1.15")},
	}}
	pricingSvc := pricing.NewService(priceRepo, items)
	periods := period.NewService(&memPeriodRepo{open: open}, locations, pricingSvc, txm)

	num := numerator.New(&seqQuerier{})
	ncrSvc := ncr.NewService(ncrRepo, num, txm, noopAuditor{})

	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(memSettingsRepo{}, rules, notification.LogSink{})

	ledgerSvc := ledger.NewService(ledgerRepo)
	svc := NewService(deliveryRepo, ledgerSvc, pricingSvc, ncrSvc, periods,
		locations, suppliers, items, num, txm, noopAuditor{}, dispatcher)

	user := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleStaff,
		LocationIDs: []string{loc.ID.String()},
	}

	return &fixture{
		svc:      svc,
		ledger:   ledgerSvc,
		repo:     deliveryRepo,
		ncrs:     ncrRepo,
		loc:      loc,
		sup:      sup,
		itemA:    itemA,
		itemB:    itemB,
		periodID: open.ID,
		ctx:      appctx.WithUser(context.Background(), user),
	}
}

func date(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func d(s string) types.Quantity {
	return types.MustDecimal(s)
}

// --- tests ---

func TestPost_ReceivesStockAtInvoicePrice(t *testing.T) {
	f := newFixture(t)

	doc := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	doc.AddLine(f.itemA.ID, d("20"), d("8.50"))

	result, err := f.svc.Post(f.ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, f.periodID, result.Delivery.PeriodID)
	assert.NotEmpty(t, result.Delivery.Number)
	assert.NotNil(t, result.Delivery.PostedAt)
	assert.False(t, result.Delivery.HasVariance)
	assert.Empty(t, result.NCRs)
	assert.True(t, result.Delivery.TotalAmount.Equal(d("170.00")))

	stock, err := f.ledger.Position(f.ctx, f.loc.ID, f.itemA.ID)
	require.NoError(t, err)
	assert.True(t, stock.OnHand.Equal(d("20")))
	assert.True(t, stock.WAC.Equal(d("8.50")))
}

func TestPost_VarianceRaisesNCRPerLine(t *testing.T) {
	f := newFixture(t)

	doc := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	doc.AddLine(f.itemA.ID, d("10"), d("9.00")) // 0.50 over locked price
	doc.AddLine(f.itemB.ID, d("50"), d("1.15")) // exactly at locked price

	result, err := f.svc.Post(f.ctx, doc)
	require.NoError(t, err)

	assert.True(t, result.Delivery.HasVariance)
	require.Len(t, result.NCRs, 1)

	report := result.NCRs[0]
	assert.Equal(t, ncr.TypePriceVariance, report.Type)
	assert.True(t, report.AutoGenerated)
	assert.NotEmpty(t, report.Number)
	assert.Equal(t, f.itemA.ID, *report.ItemID)
	assert.Equal(t, f.sup.ID, *report.SupplierID)
	assert.Equal(t, result.Delivery.ID, *report.DeliveryID)
	assert.True(t, report.Variance.Equal(d("0.50")))
	// 10 * 0.50 overcharge
	assert.True(t, report.Value.Equal(d("5.00")))

	// variant line carries the locked price alongside the invoice price
	lines, err := f.repo.GetLines(f.ctx, result.Delivery.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].PeriodPrice.Equal(d("8.50")))
	assert.True(t, lines[0].Variance.Equal(d("0.50")))
	assert.True(t, lines[1].Variance.IsZero())
}

func TestPost_UnderchargeAlsoRaisesNCR(t *testing.T) {
	f := newFixture(t)

	doc := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	doc.AddLine(f.itemB.ID, d("100"), d("1.00")) // 0.15 under locked price

	result, err := f.svc.Post(f.ctx, doc)
	require.NoError(t, err)

	require.Len(t, result.NCRs, 1)
	report := result.NCRs[0]
	assert.True(t, report.Variance.Equal(d("-0.15")))
	assert.True(t, report.Value.Equal(d("-15.00")))

	// stock is still received at the invoice price, not the locked one
	stock, err := f.ledger.Position(f.ctx, f.loc.ID, f.itemB.ID)
	require.NoError(t, err)
	assert.True(t, stock.WAC.Equal(d("1.00")))
}

func TestPost_WACReAveragesAcrossDeliveries(t *testing.T) {
	f := newFixture(t)

	first := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	first.AddLine(f.itemA.ID, d("10"), d("8.50"))
	_, err := f.svc.Post(f.ctx, first)
	require.NoError(t, err)

	second := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	second.AddLine(f.itemA.ID, d("30"), d("9.50"))
	_, err = f.svc.Post(f.ctx, second)
	require.NoError(t, err)

	// (10*8.50 + 30*9.50) / 40 = 9.25
	stock, err := f.ledger.Position(f.ctx, f.loc.ID, f.itemA.ID)
	require.NoError(t, err)
	assert.True(t, stock.OnHand.Equal(d("40")))
	assert.True(t, stock.WAC.Equal(d("9.25")), "wac = %s", stock.WAC)
}

func TestPost_UnknownItemRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	doc := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	doc.AddLine(f.itemA.ID, d("10"), d("8.50"))
	doc.AddLine(id.New(), d("5"), d("2.00")) // not in master data

	_, err := f.svc.Post(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	// first line must not have been received
	_, err = f.ledger.Position(f.ctx, f.loc.ID, f.itemA.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, f.repo.docs)
	assert.Empty(t, f.ncrs.reports)
}

func TestPost_LocationAccessDenied(t *testing.T) {
	f := newFixture(t)

	outsider := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleStaff,
		LocationIDs: []string{id.New().String()},
	}
	ctx := appctx.WithUser(context.Background(), outsider)

	doc := NewDelivery(id.Nil(), f.loc.ID, f.sup.ID)
	doc.AddLine(f.itemA.ID, d("10"), d("8.50"))

	_, err := f.svc.Post(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLocationAccessDenied))
}
