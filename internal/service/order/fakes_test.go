package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Additional-Code/parcel/internal/cache"
	"github.com/Additional-Code/parcel/internal/entity"
	"github.com/Additional-Code/parcel/internal/notification"
	courierrepo "github.com/Additional-Code/parcel/internal/repository/courier"
	filerepo "github.com/Additional-Code/parcel/internal/repository/file"
	repo "github.com/Additional-Code/parcel/internal/repository/order"
	recipientrepo "github.com/Additional-Code/parcel/internal/repository/recipient"
	"github.com/Additional-Code/parcel/internal/service/quota"
)

// fakeOrders mimics the guarded updates of the bun repository in memory.
type fakeOrders struct {
	mu         sync.Mutex
	rows       map[int64]*entity.Order
	nextID     int64
	couriers   *fakeCouriers
	recipients *fakeRecipients

	partyReads int
	// beforeWrite runs ahead of each guarded update to simulate a concurrent writer.
	beforeWrite func(o *entity.Order)
}

func (f *fakeOrders) Create(_ context.Context, o *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	o.ID = f.nextID
	cp := *o
	f.rows[o.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetWithParties(ctx context.Context, id int64) (*entity.Order, error) {
	o, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.partyReads++
	f.mu.Unlock()
	o.Courier, _ = f.couriers.GetByID(ctx, o.CourierID)
	o.Recipient, _ = f.recipients.GetByID(ctx, o.RecipientID)
	return o, nil
}

func (f *fakeOrders) List(_ context.Context, filter repo.Filter) ([]entity.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Order
	for _, o := range f.rows {
		if filter.Product != "" && !strings.Contains(strings.ToLower(o.Product), strings.ToLower(filter.Product)) {
			continue
		}
		if filter.CourierID != nil && o.CourierID != *filter.CourierID {
			continue
		}
		if filter.ExcludeCanceled && o.CanceledAt != nil {
			continue
		}
		if filter.Delivered != nil && *filter.Delivered != (o.DeliveredAt != nil) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if filter.Limit > 0 {
		end := filter.Offset + filter.Limit
		if filter.Offset > total {
			filter.Offset = total
		}
		if end > total {
			end = total
		}
		out = out[filter.Offset:end]
	}
	return out, total, nil
}

func (f *fakeOrders) CountPickedUpBetween(_ context.Context, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.rows {
		if o.PickedUpAt == nil || o.CanceledAt != nil {
			continue
		}
		if !o.PickedUpAt.Before(from) && o.PickedUpAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrders) guarded(id int64, guard func(*entity.Order) bool, apply func(*entity.Order)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return repo.ErrStateConflict
	}
	if f.beforeWrite != nil {
		f.beforeWrite(o)
	}
	if !guard(o) {
		return repo.ErrStateConflict
	}
	apply(o)
	return nil
}

func (f *fakeOrders) MarkPickedUp(_ context.Context, id, courierID int64, at, now time.Time) error {
	return f.guarded(id,
		func(o *entity.Order) bool {
			return o.CourierID == courierID && o.PickedUpAt == nil && o.DeliveredAt == nil && o.CanceledAt == nil
		},
		func(o *entity.Order) {
			t := at.UTC()
			o.PickedUpAt = &t
			o.UpdatedAt = now
		})
}

func (f *fakeOrders) MarkDelivered(_ context.Context, id, courierID int64, at time.Time, signatureID int64, now time.Time) error {
	return f.guarded(id,
		func(o *entity.Order) bool {
			return o.CourierID == courierID && o.PickedUpAt != nil && o.DeliveredAt == nil && o.CanceledAt == nil
		},
		func(o *entity.Order) {
			t := at.UTC()
			o.DeliveredAt = &t
			o.SignatureFileID = &signatureID
			o.UpdatedAt = now
		})
}

func (f *fakeOrders) MarkCanceled(_ context.Context, id int64, at time.Time) error {
	return f.guarded(id,
		func(o *entity.Order) bool { return o.DeliveredAt == nil && o.CanceledAt == nil },
		func(o *entity.Order) {
			t := at.UTC()
			o.CanceledAt = &t
			o.UpdatedAt = at
		})
}

func (f *fakeOrders) Reassign(_ context.Context, id, courierID, recipientID int64, product string, now time.Time) error {
	return f.guarded(id,
		func(o *entity.Order) bool { return o.DeliveredAt == nil && o.CanceledAt == nil },
		func(o *entity.Order) {
			o.CourierID = courierID
			o.RecipientID = recipientID
			o.Product = product
			o.UpdatedAt = now
		})
}

type fakeCouriers struct{ rows map[int64]*entity.Courier }

func (f *fakeCouriers) GetByID(_ context.Context, id int64) (*entity.Courier, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, courierrepo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeRecipients struct{ rows map[int64]*entity.Recipient }

func (f *fakeRecipients) GetByID(_ context.Context, id int64) (*entity.Recipient, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, recipientrepo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type fakeFiles struct{ rows map[int64]*entity.StoredFile }

func (f *fakeFiles) GetByID(_ context.Context, id int64) (*entity.StoredFile, error) {
	file, ok := f.rows[id]
	if !ok {
		return nil, filerepo.ErrNotFound
	}
	return file, nil
}

type enqueued struct {
	kind    notification.Kind
	payload any
}

type fakeDispatcher struct {
	jobs []enqueued
	err  error
}

func (f *fakeDispatcher) Enqueue(_ context.Context, kind notification.Kind, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{kind: kind, payload: payload})
	return nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

const (
	courierAna   int64 = 1
	courierBruno int64 = 2
	recipientID  int64 = 10
	signatureID  int64 = 100
)

type fixture struct {
	svc        *Service
	orders     *fakeOrders
	dispatcher *fakeDispatcher
	cache      *memoryCache
	clock      *clockwork.FakeClock
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	couriers := &fakeCouriers{rows: map[int64]*entity.Courier{
		courierAna:   {ID: courierAna, Name: "Ana Lima", Email: "ana@parcel.test"},
		courierBruno: {ID: courierBruno, Name: "Bruno Reis", Email: "bruno@parcel.test"},
	}}
	recipients := &fakeRecipients{rows: map[int64]*entity.Recipient{
		recipientID: {
			ID: recipientID, Name: "Carla Souza", Street: "Rua das Flores", Number: "42",
			Complement: "apt 3", City: "Recife", State: "PE", Zip: "50000000",
		},
	}}
	orders := &fakeOrders{rows: map[int64]*entity.Order{}, couriers: couriers, recipients: recipients}
	dispatcher := &fakeDispatcher{}
	store := &memoryCache{data: map[string][]byte{}}
	clock := clockwork.NewFakeClockAt(now)
	logger := zap.NewNop()

	svc := &Service{
		orders:     orders,
		couriers:   couriers,
		recipients: recipients,
		files:      &fakeFiles{rows: map[int64]*entity.StoredFile{signatureID: {ID: signatureID, Name: "sig.png", Path: "signatures/sig.png"}}},
		quota:      quota.New(orders, 5, time.UTC, logger),
		dispatcher: dispatcher,
		cache:      cache.Namespace(store, cache.NamespaceOrders),
		cacheTTL:   time.Minute,
		clock:      clock,
		logger:     logger,
		metrics:    newCounters(logger),
	}
	return &fixture{svc: svc, orders: orders, dispatcher: dispatcher, cache: store, clock: clock}
}

// seed inserts an order directly, bypassing the engine.
func (f *fixture) seed(t *testing.T, o entity.Order) int64 {
	t.Helper()
	if o.CourierID == 0 {
		o.CourierID = courierAna
	}
	if o.RecipientID == 0 {
		o.RecipientID = recipientID
	}
	if o.Product == "" {
		o.Product = "Notebook"
	}
	if err := f.orders.Create(context.Background(), &o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o.ID
}

func ptr[T any](v T) *T {
	return &v
}
