package incident

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/entity"
	incidentrepo "github.com/Additional-Code/parcel/internal/repository/incident"
	orderrepo "github.com/Additional-Code/parcel/internal/repository/order"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

var now = time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)

type fakeIncidents struct {
	rows   []entity.Incident
	nextID int64
}

func (f *fakeIncidents) Create(_ context.Context, i *entity.Incident) error {
	f.nextID++
	i.ID = f.nextID
	f.rows = append(f.rows, *i)
	return nil
}

func (f *fakeIncidents) GetByID(_ context.Context, id int64) (*entity.Incident, error) {
	for _, i := range f.rows {
		if i.ID == id {
			cp := i
			return &cp, nil
		}
	}
	return nil, incidentrepo.ErrNotFound
}

func (f *fakeIncidents) List(_ context.Context, filter incidentrepo.Filter) ([]entity.Incident, int, error) {
	var out []entity.Incident
	for _, i := range f.rows {
		if filter.OrderID == nil || i.OrderID == *filter.OrderID {
			out = append(out, i)
		}
	}
	return out, len(out), nil
}

type fakeOrders map[int64]*entity.Order

func (f fakeOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	o, ok := f[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

type fakeEngine struct {
	orders fakeOrders
	calls  []int64
}

func (f *fakeEngine) Cancel(_ context.Context, id int64) (*entity.Order, error) {
	f.calls = append(f.calls, id)
	o := f.orders[id]
	if o.DeliveredAt != nil {
		return nil, errorbank.AlreadyDelivered("order was already delivered")
	}
	at := now
	o.CanceledAt = &at
	cp := *o
	return &cp, nil
}

func newTestService(orders fakeOrders) (*Service, *fakeIncidents, *fakeEngine) {
	incidents := &fakeIncidents{}
	engine := &fakeEngine{orders: orders}
	return &Service{
		incidents: incidents,
		orders:    orders,
		engine:    engine,
		minLength: 5,
		clock:     clockwork.NewFakeClockAt(now),
		logger:    zap.NewNop(),
	}, incidents, engine
}

func TestService_Report(t *testing.T) {
	ctx := context.Background()
	delivered := now.Add(-time.Hour)

	tests := []struct {
		name        string
		orderID     int64
		description string
		want        errorbank.Kind
	}{
		{"short description", 1, "  dog ", errorbank.KindValidation},
		{"short description wins over missing order", 404, "bad", errorbank.KindValidation},
		{"missing order", 404, "package damaged", errorbank.KindNotFound},
		{"delivered order", 2, "package damaged", errorbank.KindAlreadyDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, incidents, _ := newTestService(fakeOrders{
				1: {ID: 1},
				2: {ID: 2, PickedUpAt: &delivered, DeliveredAt: &delivered},
			})

			_, err := svc.Report(ctx, tt.orderID, tt.description)

			require.Error(t, err)
			assert.True(t, errorbank.Is(err, tt.want), "got %v", err)
			assert.Empty(t, incidents.rows)
		})
	}

	t.Run("should reject a blank description without a minimum", func(t *testing.T) {
		svc, incidents, _ := newTestService(fakeOrders{1: {ID: 1}})
		svc.minLength = 0

		for _, description := range []string{"", "   \t"} {
			_, err := svc.Report(ctx, 1, description)

			require.Error(t, err)
			assert.True(t, errorbank.Is(err, errorbank.KindValidation), "got %v", err)
		}
		assert.Empty(t, incidents.rows)
	})

	t.Run("should store the trimmed description", func(t *testing.T) {
		canceled := now
		svc, incidents, _ := newTestService(fakeOrders{1: {ID: 1, CanceledAt: &canceled}})

		incident, err := svc.Report(ctx, 1, "  recipient absent  ")

		require.NoError(t, err)
		assert.Equal(t, "recipient absent", incident.Description)
		assert.True(t, incident.CreatedAt.Equal(now))
		assert.Len(t, incidents.rows, 1)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(fakeOrders{1: {ID: 1}, 2: {ID: 2}})
	_, err := svc.Report(ctx, 1, "wrong address")
	require.NoError(t, err)
	_, err = svc.Report(ctx, 2, "parcel wet")
	require.NoError(t, err)

	all, total, err := svc.List(ctx, nil, dto.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	orderID := int64(2)
	scoped, _, err := svc.List(ctx, &orderID, dto.Page{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "parcel wet", scoped[0].Description)

	missing := int64(404)
	_, _, err = svc.List(ctx, &missing, dto.Page{})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("should cancel the parent order once", func(t *testing.T) {
		orders := fakeOrders{7: {ID: 7}}
		svc, incidents, engine := newTestService(orders)
		incident, err := svc.Report(ctx, 7, "customer moved")
		require.NoError(t, err)

		order, err := svc.Resolve(ctx, incident.ID)

		require.NoError(t, err)
		require.NotNil(t, order.CanceledAt)
		assert.Equal(t, []int64{7}, engine.calls)
		assert.Equal(t, "customer moved", incidents.rows[0].Description)

		_, err = svc.Resolve(ctx, incident.ID)
		assert.True(t, errorbank.Is(err, errorbank.KindAlreadyCanceled))
		assert.Len(t, engine.calls, 1)
	})

	t.Run("should surface delivered orders", func(t *testing.T) {
		orders := fakeOrders{7: {ID: 7}}
		svc, _, engine := newTestService(orders)
		incident, err := svc.Report(ctx, 7, "late delivery")
		require.NoError(t, err)
		delivered := now
		orders[7].PickedUpAt, orders[7].DeliveredAt = &delivered, &delivered

		_, err = svc.Resolve(ctx, incident.ID)

		assert.True(t, errorbank.Is(err, errorbank.KindAlreadyDelivered))
		assert.Len(t, engine.calls, 1)
	})

	t.Run("should report unknown incidents", func(t *testing.T) {
		svc, _, engine := newTestService(fakeOrders{})

		_, err := svc.Resolve(ctx, 99)

		assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
		assert.Empty(t, engine.calls)
	})
}
