package issue

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
	"provision/internal/domain/ledger"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
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

// --- issue store ---

type memIssueRepo struct {
	docs  map[id.ID]*Issue
	lines map[id.ID][]Line
}

func newMemIssueRepo() *memIssueRepo {
	return &memIssueRepo{docs: make(map[id.ID]*Issue), lines: make(map[id.ID][]Line)}
}

type issueSnap struct {
	docs  map[id.ID]*Issue
	lines map[id.ID][]Line
}

func (m *memIssueRepo) snapshot() any {
	docs := make(map[id.ID]*Issue, len(m.docs))
	for k, v := range m.docs {
		cp := *v
		docs[k] = &cp
	}
	lines := make(map[id.ID][]Line, len(m.lines))
	for k, v := range m.lines {
		lines[k] = append([]Line(nil), v...)
	}
	return issueSnap{docs: docs, lines: lines}
}

func (m *memIssueRepo) restore(s any) {
	snap := s.(issueSnap)
	m.docs = snap.docs
	m.lines = snap.lines
}

func (m *memIssueRepo) Create(_ context.Context, doc *Issue) error {
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memIssueRepo) GetByID(_ context.Context, docID id.ID) (*Issue, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("issue", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (m *memIssueRepo) GetLines(_ context.Context, docID id.ID) ([]Line, error) {
	return append([]Line(nil), m.lines[docID]...), nil
}

func (m *memIssueRepo) SaveLines(_ context.Context, docID id.ID, lines []Line) error {
	m.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (m *memIssueRepo) List(_ context.Context, _ ListFilter) (domain.ListResult[*Issue], error) {
	return domain.ListResult[*Issue]{}, nil
}

func (m *memIssueRepo) SumByPeriodLocation(_ context.Context, _, _ id.ID) (types.Money, error) {
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

type memItemRepo struct {
	item.Repository
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
	repo     *memIssueRepo
	loc      *location.Location
	periodID id.ID
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledgerRepo := newMemLedgerRepo()
	issueRepo := newMemIssueRepo()
	txm := &fakeTxManager{stores: []snapshotter{ledgerRepo, issueRepo}}

	loc := location.NewLocation("LOC-1", "Main Kitchen", location.TypeKitchen)
	locations := &memLocationRepo{byID: map[id.ID]*location.Location{loc.ID: loc}}

	open := period.NewPeriod("August 2026", date(2026, 8, 1), date(2026, 8, 31))
	periods := period.NewService(&memPeriodRepo{open: open}, locations, nil, txm)

	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(memSettingsRepo{}, rules, notification.LogSink{})

	ledgerSvc := ledger.NewService(ledgerRepo)
	svc := NewService(issueRepo, ledgerSvc, periods, locations, &memItemRepo{},
		numerator.New(&seqQuerier{}), txm, noopAuditor{}, dispatcher)

	user := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleStaff,
		LocationIDs: []string{loc.ID.String()},
	}

	return &fixture{
		svc:      svc,
		ledger:   ledgerSvc,
		repo:     issueRepo,
		loc:      loc,
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

func (f *fixture) seedStock(t *testing.T, itemID id.ID, qty, price string) {
	t.Helper()
	_, err := f.ledger.Receive(f.ctx, f.loc.ID, itemID, d(qty), d(price))
	require.NoError(t, err)
}

// --- tests ---

func TestPost_CostsLinesAtCurrentWAC(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, itm, "100", "6.00")

	doc := NewIssue(id.Nil(), f.loc.ID, CostCentreKitchen)
	doc.AddLine(itm, d("25"))

	posted, err := f.svc.Post(f.ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, f.periodID, posted.PeriodID)
	assert.NotEmpty(t, posted.Number)
	assert.NotNil(t, posted.PostedAt)
	assert.True(t, posted.Lines[0].WACAtIssue.Equal(d("6.00")))
	assert.True(t, posted.Lines[0].Value.Equal(d("150.00")))
	assert.True(t, posted.TotalValue.Equal(d("150.00")))

	onHand, err := f.ledger.OnHand(f.ctx, f.loc.ID, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("75")))
}

func TestPost_IssueDoesNotChangeWAC(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, itm, "40", "6.00")
	f.seedStock(t, itm, "60", "8.00")
	// blended wac: (40*6 + 60*8) / 100 = 7.20

	doc := NewIssue(id.Nil(), f.loc.ID, CostCentreWastage)
	doc.AddLine(itm, d("50"))

	posted, err := f.svc.Post(f.ctx, doc)
	require.NoError(t, err)
	assert.True(t, posted.Lines[0].WACAtIssue.Equal(d("7.20")))

	stock, err := f.ledger.Position(f.ctx, f.loc.ID, itm)
	require.NoError(t, err)
	assert.True(t, stock.OnHand.Equal(d("50")))
	assert.True(t, stock.WAC.Equal(d("7.20")), "wac = %s", stock.WAC)
}

func TestPost_ShortageRollsBackWholeDocument(t *testing.T) {
	f := newFixture(t)
	itmA := id.New()
	itmB := id.New()
	f.seedStock(t, itmA, "100", "6.00")
	f.seedStock(t, itmB, "5", "2.00")

	doc := NewIssue(id.Nil(), f.loc.ID, CostCentreKitchen)
	doc.AddLine(itmA, d("10"))
	doc.AddLine(itmB, d("6")) // only 5 on hand

	_, err := f.svc.Post(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// the first line's deduction is rolled back too
	onHand, err := f.ledger.OnHand(f.ctx, f.loc.ID, itmA)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("100")))
	assert.Empty(t, f.repo.docs)
}

func TestPost_NoOpenPeriod(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, itm, "10", "6.00")

	// rebuild the service with no open period
	ledgerRepo := newMemLedgerRepo()
	issueRepo := newMemIssueRepo()
	txm := &fakeTxManager{stores: []snapshotter{ledgerRepo, issueRepo}}
	locations := &memLocationRepo{byID: map[id.ID]*location.Location{f.loc.ID: f.loc}}
	periods := period.NewService(&memPeriodRepo{}, locations, nil, txm)
	svc := NewService(issueRepo, ledger.NewService(ledgerRepo), periods, locations,
		&memItemRepo{}, numerator.New(&seqQuerier{}), txm, noopAuditor{}, dispatcherForTest(t))

	doc := NewIssue(id.Nil(), f.loc.ID, CostCentreKitchen)
	doc.AddLine(itm, d("1"))

	_, err := svc.Post(f.ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed))
}

func TestPost_LocationAccessDenied(t *testing.T) {
	f := newFixture(t)
	itm := id.New()
	f.seedStock(t, itm, "10", "6.00")

	outsider := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleStaff,
		LocationIDs: []string{id.New().String()},
	}
	ctx := appctx.WithUser(context.Background(), outsider)

	doc := NewIssue(id.Nil(), f.loc.ID, CostCentreKitchen)
	doc.AddLine(itm, d("1"))

	_, err := f.svc.Post(ctx, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLocationAccessDenied))
}

func dispatcherForTest(t *testing.T) *notification.Dispatcher {
	t.Helper()
	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)
	return notification.NewDispatcher(memSettingsRepo{}, rules, notification.LogSink{})
}
