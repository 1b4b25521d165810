package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-checkout.git/internal/orders"
)

type fakeRepo struct {
	rows   map[int64]Tracking // by order id
	events []Event
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[int64]Tracking{}}
}

func (f *fakeRepo) GetForOrder(_ context.Context, orderID int64) (*Tracking, error) {
	if t, ok := f.rows[orderID]; ok {
		cp := t
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) GetOrCreate(_ context.Context, orderID int64) (*Tracking, error) {
	if t, ok := f.rows[orderID]; ok {
		cp := t
		return &cp, nil
	}
	f.nextID++
	now := time.Now()
	t := Tracking{
		ID:           f.nextID,
		OrderID:      orderID,
		Status:       StatusProcessing,
		ProcessingAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.rows[orderID] = t
	cp := t
	return &cp, nil
}

func (f *fakeRepo) Update(_ context.Context, t *Tracking, ev *Event) error {
	if ev != nil {
		f.nextID++
		ev.ID = f.nextID
		ev.CreatedAt = time.Now()
		f.events = append(f.events, *ev)
	}
	f.rows[t.OrderID] = *t
	return nil
}

func (f *fakeRepo) Events(_ context.Context, trackingID int64) ([]Event, error) {
	var out []Event
	for _, ev := range f.events {
		if ev.TrackingID == trackingID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func paidOrder(id int64) *orders.Order {
	return &orders.Order{ID: id, Status: orders.StatusPaid}
}

func TestGetOrCreateNeverCreatesForUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := &Service{Repo: repo}

	for _, status := range []orders.Status{orders.StatusPending, orders.StatusCanceled} {
		tr, err := svc.GetOrCreate(ctx, &orders.Order{ID: 1, Status: status})
		require.NoError(t, err)
		assert.Nil(t, tr)
	}
	assert.Empty(t, repo.rows)
}

func TestGetOrCreateIsLazyAndIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := &Service{Repo: repo}

	tr, err := svc.GetOrCreate(ctx, paidOrder(1))
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, StatusProcessing, tr.Status)
	require.NotNil(t, tr.ProcessingAt)
	first := *tr.ProcessingAt

	again, err := svc.GetOrCreate(ctx, paidOrder(1))
	require.NoError(t, err)
	assert.Equal(t, tr.ID, again.ID)
	assert.Equal(t, first, *again.ProcessingAt)
}

func TestUpdateStatusRejectsUnpaidAndCanceled(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Repo: newFakeRepo()}

	_, issues, err := svc.UpdateStatus(ctx, &orders.Order{ID: 1, Status: orders.StatusCanceled},
		Update{NewStatus: StatusPacked})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "canceled", issues[0].Code)

	_, issues, err = svc.UpdateStatus(ctx, &orders.Order{ID: 1, Status: orders.StatusPending},
		Update{NewStatus: StatusPacked})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "not_paid", issues[0].Code)
}

func TestUpdateStatusWalksTheFullChain(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := &Service{Repo: repo}
	order := paidOrder(1)

	for _, next := range []Status{StatusPacked, StatusShipped, StatusDelivered} {
		tr, issues, err := svc.UpdateStatus(ctx, order, Update{NewStatus: next})
		require.NoError(t, err)
		require.Empty(t, issues)
		assert.Equal(t, next, tr.Status)
	}

	tr, err := svc.GetOrCreate(ctx, order)
	require.NoError(t, err)
	assert.NotNil(t, tr.ProcessingAt)
	assert.NotNil(t, tr.PackedAt)
	assert.NotNil(t, tr.ShippedAt)
	assert.NotNil(t, tr.DeliveredAt)

	events, err := svc.Events(ctx, tr)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, StatusProcessing, events[0].FromStatus)
	assert.Equal(t, StatusPacked, events[0].ToStatus)
	assert.Equal(t, StatusDelivered, events[2].ToStatus)
}

func TestUpdateStatusRejectsEveryTransitionOutsideTheTable(t *testing.T) {
	ctx := context.Background()
	all := []Status{StatusProcessing, StatusPacked, StatusShipped, StatusDelivered}

	for _, from := range all {
		for _, to := range all {
			if from == to || CanTransition(from, to) {
				continue
			}

			repo := newFakeRepo()
			svc := &Service{Repo: repo}
			order := paidOrder(1)

			// bring tracking into the "from" state
			tr, err := svc.GetOrCreate(ctx, order)
			require.NoError(t, err)
			tr.Status = from
			require.NoError(t, repo.Update(ctx, tr, nil))
			eventsBefore := len(repo.events)

			got, issues, err := svc.UpdateStatus(ctx, order, Update{NewStatus: to})
			require.NoError(t, err)
			assert.Nil(t, got, "%s -> %s", from, to)
			require.Len(t, issues, 1, "%s -> %s", from, to)
			assert.Equal(t, "invalid_transition", issues[0].Code)

			// status unchanged, nothing logged
			cur, err := svc.GetOrCreate(ctx, order)
			require.NoError(t, err)
			assert.Equal(t, from, cur.Status)
			assert.Len(t, repo.events, eventsBefore)
		}
	}
}

func TestSameStateUpdateIsMetadataOnly(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := &Service{Repo: repo}
	order := paidOrder(1)

	tr, issues, err := svc.UpdateStatus(ctx, order, Update{NewStatus: StatusPacked})
	require.NoError(t, err)
	require.Empty(t, issues)
	require.NotNil(t, tr.PackedAt)
	packedAt := *tr.PackedAt
	require.Len(t, repo.events, 1)

	tr, issues, err = svc.UpdateStatus(ctx, order, Update{
		NewStatus:      StatusPacked,
		Carrier:        " DHL ",
		TrackingNumber: "JD0123",
	})
	require.NoError(t, err)
	require.Empty(t, issues)

	assert.Equal(t, "DHL", tr.Carrier)
	assert.Equal(t, "JD0123", tr.TrackingNumber)
	// no second event, milestone not overwritten
	assert.Len(t, repo.events, 1)
	assert.Equal(t, packedAt, *tr.PackedAt)
}
