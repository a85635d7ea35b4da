package period

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
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/pricing"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (fakeTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- period store ---

type locKey struct {
	periodID   id.ID
	locationID id.ID
}

type memPeriodRepo struct {
	periods   map[id.ID]*Period
	locations map[locKey]*PeriodLocation
}

func newMemPeriodRepo() *memPeriodRepo {
	return &memPeriodRepo{
		periods:   make(map[id.ID]*Period),
		locations: make(map[locKey]*PeriodLocation),
	}
}

func (m *memPeriodRepo) Create(_ context.Context, p *Period) error {
	for _, existing := range m.periods {
		if existing.Status == StatusOpen && p.Status == StatusOpen {
			return apperror.NewConflict("another period is still open")
		}
	}
	cp := *p
	m.periods[p.ID] = &cp
	return nil
}

func (m *memPeriodRepo) GetByID(_ context.Context, periodID id.ID) (*Period, error) {
	p, ok := m.periods[periodID]
	if !ok {
		return nil, apperror.NewNotFound("period", periodID.String())
	}
	cp := *p
	return &cp, nil
}

func (m *memPeriodRepo) CurrentOpen(_ context.Context) (*Period, error) {
	for _, p := range m.periods {
		if p.Status == StatusOpen {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("period", "open")
}

func (m *memPeriodRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error) {
	return m.GetByID(ctx, periodID)
}

func (m *memPeriodRepo) MarkClosed(_ context.Context, periodID, closedBy id.ID, closedAt time.Time) error {
	p, ok := m.periods[periodID]
	if !ok {
		return apperror.NewNotFound("period", periodID.String())
	}
	if p.Status != StatusOpen {
		return apperror.NewConflict("period is not open")
	}
	p.Status = StatusClosed
	p.ClosedBy = &closedBy
	p.ClosedAt = &closedAt
	return nil
}

func (m *memPeriodRepo) List(_ context.Context, _, _ int) ([]*Period, error) {
	var out []*Period
	for _, p := range m.periods {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPeriodRepo) PreviousPeriod(_ context.Context, _ id.ID) (*Period, error) {
	return nil, apperror.NewNotFound("period", "previous")
}

func (m *memPeriodRepo) CreateLocations(_ context.Context, rows []*PeriodLocation) error {
	for _, row := range rows {
		cp := *row
		m.locations[locKey{row.PeriodID, row.LocationID}] = &cp
	}
	return nil
}

func (m *memPeriodRepo) GetLocation(_ context.Context, periodID, locationID id.ID) (*PeriodLocation, error) {
	row, ok := m.locations[locKey{periodID, locationID}]
	if !ok {
		return nil, apperror.NewNotFound("period_location", locationID.String())
	}
	cp := *row
	return &cp, nil
}

func (m *memPeriodRepo) MarkLocationReady(_ context.Context, periodID, locationID, readyBy id.ID, readyAt time.Time) error {
	row, ok := m.locations[locKey{periodID, locationID}]
	if !ok {
		return apperror.NewNotFound("period_location", locationID.String())
	}
	if row.Status == LocationReady {
		return nil
	}
	row.Status = LocationReady
	row.ReadyBy = &readyBy
	row.ReadyAt = &readyAt
	return nil
}

func (m *memPeriodRepo) ListLocations(_ context.Context, periodID id.ID) ([]*PeriodLocation, error) {
	var out []*PeriodLocation
	for _, row := range m.locations {
		if row.PeriodID == periodID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPeriodRepo) CountNotReady(_ context.Context, periodID id.ID) (int, error) {
	count := 0
	for _, row := range m.locations {
		if row.PeriodID == periodID && row.Status == LocationNotReady {
			count++
		}
	}
	return count, nil
}

// --- price store ---

type memPriceRepo struct {
	pricing.Repository
	byPeriod map[id.ID][]*pricing.ItemPrice
}

func newMemPriceRepo() *memPriceRepo {
	return &memPriceRepo{byPeriod: make(map[id.ID][]*pricing.ItemPrice)}
}

func (m *memPriceRepo) BulkInsert(_ context.Context, prices []*pricing.ItemPrice) error {
	for _, p := range prices {
		m.byPeriod[p.PeriodID] = append(m.byPeriod[p.PeriodID], p)
	}
	return nil
}

func (m *memPriceRepo) ExistsForPeriod(_ context.Context, periodID id.ID) (bool, error) {
	return len(m.byPeriod[periodID]) > 0, nil
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
	active []*item.Item
}

func (m *memItemRepo) ListActive(_ context.Context) ([]*item.Item, error) {
	return m.active, nil
}

// --- fixture ---

type fixture struct {
	svc    *Service
	repo   *memPeriodRepo
	prices *memPriceRepo
	locs   []*location.Location
	ctx    context.Context
	userID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemPeriodRepo()
	priceRepo := newMemPriceRepo()

	kitchen := location.NewLocation("LOC-1", "Main Kitchen", location.TypeKitchen)
	store := location.NewLocation("LOC-2", "Dry Store", location.TypeStore)
	locations := &memLocationRepo{active: []*location.Location{kitchen, store}}

	items := &memItemRepo{active: []*item.Item{
		item.NewItem("ITM-1", "Chicken Breast", item.UnitKG, types.MustDecimal("8.50")),
		item.NewItem("ITM-2", "Whole Milk", item.UnitLitre, types.MustDecimal("1.15")),
	}}

	pricingSvc := pricing.NewService(priceRepo, items)
	svc := NewService(repo, locations, pricingSvc, fakeTxManager{})

	userID := id.New()
	user := &appctx.UserContext{
		UserID:      userID.String(),
		Role:        appctx.RoleSupervisor,
		LocationIDs: []string{kitchen.ID.String(), store.ID.String()},
	}

	return &fixture{
		svc:    svc,
		repo:   repo,
		prices: priceRepo,
		locs:   []*location.Location{kitchen, store},
		ctx:    appctx.WithUser(context.Background(), user),
		userID: userID,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- tests ---

func TestOpen_LocksPricesAndSeedsLocations(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Open(f.ctx, "August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, p.Status)

	// one locked price per active item
	require.Len(t, f.prices.byPeriod[p.ID], 2)
	assert.True(t, f.prices.byPeriod[p.ID][0].ExpectedPrice.Equal(types.MustDecimal("8.50")))

	// one NOT_READY row per active location
	rows, err := f.svc.Locations(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, LocationNotReady, row.Status)
	}
}

func TestOpen_SecondOpenPeriodConflicts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(f.ctx, "August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, err)

	_, err = f.svc.Open(f.ctx, "September 2026", date(2026, 9, 1), date(2026, 9, 30))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
}

func TestOpen_RejectsInvertedDates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Open(f.ctx, "Broken", date(2026, 8, 31), date(2026, 8, 1))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestMarkReady_IsIdempotent(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Open(f.ctx, "August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, err)
	loc := f.locs[0]

	require.NoError(t, f.svc.MarkReady(f.ctx, p.ID, loc.ID))

	row, err := f.repo.GetLocation(f.ctx, p.ID, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, LocationReady, row.Status)
	require.NotNil(t, row.ReadyBy)
	assert.Equal(t, f.userID, *row.ReadyBy)
	firstReadyAt := *row.ReadyAt

	// the second sign-off keeps the original stamp
	require.NoError(t, f.svc.MarkReady(f.ctx, p.ID, loc.ID))

	row, err = f.repo.GetLocation(f.ctx, p.ID, loc.ID)
	require.NoError(t, err)
	assert.True(t, row.ReadyAt.Equal(firstReadyAt))
}

func TestMarkReady_DeniedWithoutLocationAccess(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Open(f.ctx, "August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, err)

	outsider := &appctx.UserContext{
		UserID:      id.New().String(),
		Role:        appctx.RoleSupervisor,
		LocationIDs: []string{id.New().String()},
	}
	ctx := appctx.WithUser(context.Background(), outsider)

	err = f.svc.MarkReady(ctx, p.ID, f.locs[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLocationAccessDenied))
}

func TestMarkReady_ClosedPeriod(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Open(f.ctx, "August 2026", date(2026, 8, 1), date(2026, 8, 31))
	require.NoError(t, err)

	require.NoError(t, f.repo.MarkClosed(f.ctx, p.ID, f.userID, time.Now()))

	err = f.svc.MarkReady(f.ctx, p.ID, f.locs[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePeriodClosed))
}
