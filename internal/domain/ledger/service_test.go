package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	rows map[string]*LocationStock
}

func newMockRepo() *mockRepo {
	return &mockRepo{rows: make(map[string]*LocationStock)}
}

func key(locationID, itemID id.ID) string {
	return locationID.String() + "|" + itemID.String()
}

func (m *mockRepo) Get(_ context.Context, locationID, itemID id.ID) (*LocationStock, error) {
	row, ok := m.rows[key(locationID, itemID)]
	if !ok {
		return nil, apperror.NewNotFound("location_stock", key(locationID, itemID))
	}
	cp := *row
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, locationID, itemID id.ID) (*LocationStock, error) {
	return m.Get(ctx, locationID, itemID)
}

func (m *mockRepo) Upsert(_ context.Context, stock *LocationStock) error {
	cp := *stock
	m.rows[key(stock.LocationID, stock.ItemID)] = &cp
	return nil
}

func (m *mockRepo) ListByLocation(_ context.Context, locationID id.ID) ([]*LocationStock, error) {
	var out []*LocationStock
	for _, row := range m.rows {
		if row.LocationID == locationID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) LocationValue(_ context.Context, locationID id.ID) (types.Money, error) {
	total := types.Zero()
	for _, row := range m.rows {
		if row.LocationID == locationID {
			total = total.Add(row.OnHand.Mul(row.WAC))
		}
	}
	return types.RoundMoney(total), nil
}

func (m *mockRepo) SetLevels(_ context.Context, locationID, itemID id.ID, minQty, maxQty *types.Quantity) error {
	row, ok := m.rows[key(locationID, itemID)]
	if !ok {
		return apperror.NewNotFound("location_stock", key(locationID, itemID))
	}
	row.MinQty = minQty
	row.MaxQty = maxQty
	return nil
}

func d(s string) types.Quantity {
	return types.MustDecimal(s)
}

func TestReceive_FirstReceiptSetsWAC(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc, itm := id.New(), id.New()

	stock, err := svc.Receive(ctx, loc, itm, d("100"), d("5.50"))
	require.NoError(t, err)

	assert.True(t, stock.OnHand.Equal(d("100")), "on_hand = %s", stock.OnHand)
	assert.True(t, stock.WAC.Equal(d("5.50")), "wac = %s", stock.WAC)
}

func TestReceive_RecomputesWeightedAverage(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc, itm := id.New(), id.New()

	// 100 @ 5.00 then 50 @ 8.00 => (500 + 400) / 150 = 6.00
	_, err := svc.Receive(ctx, loc, itm, d("100"), d("5.00"))
	require.NoError(t, err)
	stock, err := svc.Receive(ctx, loc, itm, d("50"), d("8.00"))
	require.NoError(t, err)

	assert.True(t, stock.OnHand.Equal(d("150")))
	assert.True(t, stock.WAC.Equal(d("6.00")), "wac = %s", stock.WAC)
}

func TestReceive_WACMatchesTotalCostOverTotalQty(t *testing.T) {
	type receipt struct{ qty, price string }

	tests := []struct {
		name     string
		receipts []receipt
		wantWAC  string
	}{
		{
			name:     "two receipts",
			receipts: []receipt{{"10", "2.00"}, {"30", "4.00"}},
			wantWAC:  "3.50",
		},
		{
			name:     "three receipts",
			receipts: []receipt{{"5", "10.00"}, {"5", "20.00"}, {"10", "15.00"}},
			wantWAC:  "15.00",
		},
		{
			name:     "fractional quantities",
			receipts: []receipt{{"2.5", "4.00"}, {"2.5", "6.00"}},
			wantWAC:  "5.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(newMockRepo())
			loc, itm := id.New(), id.New()

			var last *LocationStock
			var err error
			for _, r := range tt.receipts {
				last, err = svc.Receive(ctx, loc, itm, d(r.qty), d(r.price))
				require.NoError(t, err)
			}

			assert.True(t, last.WAC.Equal(d(tt.wantWAC)), "wac = %s, want %s", last.WAC, tt.wantWAC)
		})
	}
}

func TestReceive_OrderIndependentForSameBasket(t *testing.T) {
	ctx := context.Background()
	loc, itm := id.New(), id.New()

	forward := NewService(newMockRepo())
	_, err := forward.Receive(ctx, loc, itm, d("100"), d("5.00"))
	require.NoError(t, err)
	a, err := forward.Receive(ctx, loc, itm, d("50"), d("8.00"))
	require.NoError(t, err)

	reverse := NewService(newMockRepo())
	_, err = reverse.Receive(ctx, loc, itm, d("50"), d("8.00"))
	require.NoError(t, err)
	b, err := reverse.Receive(ctx, loc, itm, d("100"), d("5.00"))
	require.NoError(t, err)

	assert.True(t, a.WAC.Equal(b.WAC), "forward %s != reverse %s", a.WAC, b.WAC)
}

func TestReceive_RejectsNonPositiveQty(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())

	_, err := svc.Receive(ctx, id.New(), id.New(), d("0"), d("5.00"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Receive(ctx, id.New(), id.New(), d("-1"), d("5.00"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestDeduct_LeavesWACUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc, itm := id.New(), id.New()

	_, err := svc.Receive(ctx, loc, itm, d("100"), d("5.00"))
	require.NoError(t, err)
	_, err = svc.Receive(ctx, loc, itm, d("50"), d("8.00"))
	require.NoError(t, err)

	stock, err := svc.Deduct(ctx, loc, itm, d("120"))
	require.NoError(t, err)

	assert.True(t, stock.OnHand.Equal(d("30")))
	assert.True(t, stock.WAC.Equal(d("6.00")), "wac changed on deduct: %s", stock.WAC)
}

func TestDeduct_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc, itm := id.New(), id.New()

	_, err := svc.Receive(ctx, loc, itm, d("10"), d("5.00"))
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, loc, itm, d("10.0001"))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, itm.String(), appErr.Details["item"])
	assert.Equal(t, loc.String(), appErr.Details["location"])
	assert.Equal(t, "10.0001", appErr.Details["requested"])
	assert.Equal(t, "10", appErr.Details["available"])

	// failed deduct must not change the position
	onHand, err := svc.OnHand(ctx, loc, itm)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(d("10")))
}

func TestDeduct_UnknownPositionIsInsufficient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())

	_, err := svc.Deduct(ctx, id.New(), id.New(), d("1"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestDeduct_ExactQuantityDrainsToZero(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc, itm := id.New(), id.New()

	_, err := svc.Receive(ctx, loc, itm, d("10"), d("5.00"))
	require.NoError(t, err)

	stock, err := svc.Deduct(ctx, loc, itm, d("10"))
	require.NoError(t, err)
	assert.True(t, stock.OnHand.IsZero())
	assert.True(t, stock.WAC.Equal(d("5.00")))
}

func TestValueAt_And_LocationValue(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockRepo())
	loc := id.New()
	itm1, itm2 := id.New(), id.New()

	_, err := svc.Receive(ctx, loc, itm1, d("100"), d("5.00"))
	require.NoError(t, err)
	_, err = svc.Receive(ctx, loc, itm2, d("20"), d("2.50"))
	require.NoError(t, err)

	v1, err := svc.ValueAt(ctx, loc, itm1)
	require.NoError(t, err)
	assert.True(t, v1.Equal(d("500.00")), "value = %s", v1)

	total, err := svc.LocationValue(ctx, loc)
	require.NoError(t, err)
	assert.True(t, total.Equal(d("550.00")), "total = %s", total)

	// never-moved position values at zero
	v0, err := svc.ValueAt(ctx, loc, id.New())
	require.NoError(t, err)
	assert.True(t, v0.IsZero())
}

func TestRecomputeWAC_RoundsToUnitCostPrecision(t *testing.T) {
	// (3*1.00 + 1*2.00) / 4 = 1.25; (1*1.00 + 2*1.50) / 3 = 1.3333
	got := RecomputeWAC(d("3"), d("1.00"), d("1"), d("2.00"))
	assert.True(t, got.Equal(d("1.25")), "got %s", got)

	got = RecomputeWAC(d("1"), d("1.00"), d("2"), d("1.50"))
	assert.True(t, got.Equal(d("1.3333")), "got %s", got)
}
