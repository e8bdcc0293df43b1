package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"coworking/internal/domain"
	"coworking/internal/notification"
	"coworking/internal/pkg/lock"
	"coworking/internal/repository"
	"coworking/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockNotifier records emitted events.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Emit(e notification.Event) {
	m.Called(e)
}

func (m *MockNotifier) count(t notification.Type) int {
	n := 0
	for _, call := range m.Calls {
		if call.Arguments.Get(0).(notification.Event).Type == t {
			n++
		}
	}
	return n
}

var moscow = mustLoad("Europe/Moscow")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

const day = "2025-03-10"

// fixed "now": the evening before the test day
var clock = time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)

func msk(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, moscow).UTC()
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	notifier *MockNotifier
	zone     *domain.Zone
	places   []domain.Place
}

func setup(t *testing.T, places int) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	zone, ps := testutil.SeedZone(t, db, "Open space", places)

	n := &MockNotifier{}
	n.On("Emit", mock.Anything).Return()

	svc := NewService(repository.NewStore(db), lock.NewLocal(), n, Config{
		MaxBookingDuration: 6 * time.Hour,
		Location:           moscow,
		Now:                func() time.Time { return clock },
	}, zap.NewNop())

	return &fixture{svc: svc, db: db, notifier: n, zone: zone, places: ps}
}

func byTime(zoneID int64, sh, sm, eh, em int) TimeRangeRequest {
	return TimeRangeRequest{ZoneID: zoneID, Date: day, StartHour: sh, StartMinute: sm, EndHour: eh, EndMinute: em}
}

func requireAdmission(t *testing.T, err error, reason AdmissionReason) {
	t.Helper()
	require.ErrorIs(t, err, ErrAdmissionDenied)
	var admErr *AdmissionError
	require.ErrorAs(t, err, &admErr)
	assert.Equal(t, reason, admErr.Reason)
}

func requireExtension(t *testing.T, err error, reason ExtensionReason) {
	t.Helper()
	require.ErrorIs(t, err, ErrExtensionDenied)
	var extErr *ExtensionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, reason, extErr.Reason)
	assert.NotEmpty(t, extErr.Message)
}

// assertInvariants checks slot availability and the per-user overlap rule
// across the whole database.
func assertInvariants(t *testing.T, db *gorm.DB) {
	t.Helper()

	var slots []domain.Slot
	require.NoError(t, db.Find(&slots).Error)
	active := testutil.ActiveBookings(t, db)

	bySlot := map[int64]int{}
	for _, b := range active {
		bySlot[b.SlotID]++
	}
	for _, s := range slots {
		assert.LessOrEqual(t, bySlot[s.ID], 1, "slot %d double booked", s.ID)
		assert.Equal(t, bySlot[s.ID] == 0, s.IsAvailable, "slot %d availability out of sync", s.ID)
	}

	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if a.UserID != b.UserID {
				continue
			}
			overlap := a.StartTime.Before(b.EndTime) && a.EndTime.After(b.StartTime)
			assert.False(t, overlap, "user %d has overlapping bookings %d and %d", a.UserID, a.ID, b.ID)
		}
	}
}

func TestCreateByTimeRange_ZoneCapacity(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	b1, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)
	b2, err := f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	assert.True(t, b1.StartTime.Equal(msk(10, 0)))
	assert.True(t, b1.EndTime.Equal(msk(12, 0)))
	assert.Equal(t, f.zone.Name, b1.ZoneName)
	assert.Equal(t, f.zone.Address, b1.ZoneAddress)
	assert.NotEqual(t, b1.SlotID, b2.SlotID)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 3, byTime(f.zone.ID, 10, 0, 12, 0))
	requireAdmission(t, err, ReasonCapacity)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 3, byTime(f.zone.ID, 11, 0, 13, 0))
	requireAdmission(t, err, ReasonCapacity)

	assert.Equal(t, 2, f.notifier.count(notification.BookingCreated))
	assertInvariants(t, f.db)
}

func TestCreateByTimeRange_PersonalConflictAcrossZones(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	other, _ := testutil.SeedZone(t, f.db, "Quiet room", 3)

	_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 1, byTime(other.ID, 10, 0, 12, 0))
	requireAdmission(t, err, ReasonConflict)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(other.ID, 10, 0, 12, 0))
	assert.NoError(t, err)
	assertInvariants(t, f.db)
}

func TestCreateByTimeRange_TouchingIntervals(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	first, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 11, 0))
	require.NoError(t, err)
	second, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 11, 0, 12, 0))
	require.NoError(t, err)

	assert.True(t, first.EndTime.Equal(second.StartTime))
	assertInvariants(t, f.db)
}

func TestCreateByTimeRange_ReusesFreeSlotAndSkipsTakenPlaces(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	// a longer booking on the first place blocks it via overlap
	_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 9, 0, 13, 0))
	require.NoError(t, err)

	free := testutil.SeedSlot(t, f.db, f.places[1].ID, msk(10, 0), msk(12, 0))

	b, err := f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, free.ID, b.SlotID)
	assertInvariants(t, f.db)
}

func TestCreateByTimeRange_PartialOverlapCountsAgainstCapacity(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	// both places are busy until 11:00
	_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 11, 0))
	require.NoError(t, err)
	_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 10, 0, 11, 0))
	require.NoError(t, err)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 3, byTime(f.zone.ID, 10, 30, 11, 30))
	requireAdmission(t, err, ReasonCapacity)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 3, byTime(f.zone.ID, 11, 0, 12, 0))
	require.NoError(t, err)
}

func TestCreateByTimeRange_Validation(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	cases := map[string]TimeRangeRequest{
		"bad date":       {ZoneID: f.zone.ID, Date: "10.03.2025", StartHour: 10, EndHour: 11},
		"end before":     byTime(f.zone.ID, 12, 0, 10, 0),
		"zero length":    byTime(f.zone.ID, 10, 0, 10, 0),
		"hour 25":        byTime(f.zone.ID, 10, 0, 25, 0),
		"minute 60":      byTime(f.zone.ID, 10, 60, 11, 0),
		"24 with minute": byTime(f.zone.ID, 20, 0, 24, 30),
		"negative":       byTime(f.zone.ID, -1, 0, 2, 0),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateBookingByTimeRange(ctx, 1, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 18, 0, 24, 0))
	require.NoError(t, err)
	assert.True(t, b.EndTime.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, moscow)))
}

func TestCreateByTimeRange_DurationExceeded(t *testing.T) {
	f := setup(t, 1)

	_, err := f.svc.CreateBookingByTimeRange(context.Background(), 1, byTime(f.zone.ID, 9, 0, 15, 5))
	requireAdmission(t, err, ReasonDurationExceeded)
}

func TestCreateByTimeRange_ZoneAvailability(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID+100, 10, 0, 11, 0))
	requireAdmission(t, err, ReasonZoneUnavailable)

	until := msk(20, 0)
	reason := "ремонт"
	require.NoError(t, f.db.Model(&domain.Zone{}).Where("id = ?", f.zone.ID).Updates(map[string]any{
		"is_active": false, "closure_reason": reason, "closed_until": until,
	}).Error)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 11, 0))
	requireAdmission(t, err, ReasonZoneUnavailable)

	// once the closure has expired the zone reopens on demand
	f.svc.cfg.Now = func() time.Time { return until.Add(time.Minute) }
	_, err = f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 21, 0, 22, 0))
	require.NoError(t, err)

	var z domain.Zone
	require.NoError(t, f.db.First(&z, f.zone.ID).Error)
	assert.True(t, z.IsActive)
	assert.Nil(t, z.ClosureReason)
}

func TestCreateBooking_DirectSlot(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	slot := testutil.SeedSlot(t, f.db, f.places[0].ID, msk(10, 0), msk(12, 0))

	b, err := f.svc.CreateBooking(ctx, 1, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, b.SlotID)
	assert.Equal(t, domain.BookingActive, b.Status)

	_, err = f.svc.CreateBooking(ctx, 2, slot.ID)
	requireAdmission(t, err, ReasonSlotUnavailable)

	_, err = f.svc.CreateBooking(ctx, 1, slot.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	f.notifier.AssertCalled(t, "Emit", mock.MatchedBy(func(e notification.Event) bool {
		return e.Type == notification.BookingCreated && e.BookingID == b.ID && e.UserID == 1
	}))
	assertInvariants(t, f.db)
}

func TestCreateBooking_DirectSlotConflictAndCapacity(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	// same user, another place in another zone
	_, otherPlaces := testutil.SeedZone(t, f.db, "Loft", 1)
	overlap := testutil.SeedSlot(t, f.db, otherPlaces[0].ID, msk(11, 0), msk(13, 0))
	_, err = f.svc.CreateBooking(ctx, 1, overlap.ID)
	requireAdmission(t, err, ReasonConflict)

	// a free slot in a zone already at capacity; the spare place is out of
	// service and does not count
	spare := &domain.Place{ZoneID: f.zone.ID, Name: "Место 2", IsActive: false}
	require.NoError(t, f.db.Create(spare).Error)
	extra := testutil.SeedSlot(t, f.db, spare.ID, msk(11, 0), msk(11, 30))
	_, err = f.svc.CreateBooking(ctx, 2, extra.ID)
	requireAdmission(t, err, ReasonCapacity)
	assertInvariants(t, f.db)
}

func TestCreateBooking_DirectSlotOverlappingTakenSlotOnSamePlace(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	first := testutil.SeedSlot(t, f.db, f.places[0].ID, msk(10, 0), msk(12, 0))
	second := testutil.SeedSlot(t, f.db, f.places[0].ID, msk(11, 0), msk(13, 0))

	_, err := f.svc.CreateBooking(ctx, 1, first.ID)
	require.NoError(t, err)

	// the zone still has a free place, but this desk is busy until 12:00
	_, err = f.svc.CreateBooking(ctx, 2, second.ID)
	requireAdmission(t, err, ReasonSlotUnavailable)

	var got domain.Slot
	require.NoError(t, f.db.First(&got, second.ID).Error)
	assert.True(t, got.IsAvailable)

	// the neighbouring place is unaffected
	other := testutil.SeedSlot(t, f.db, f.places[1].ID, msk(11, 0), msk(13, 0))
	_, err = f.svc.CreateBooking(ctx, 2, other.ID)
	require.NoError(t, err)
	assertInvariants(t, f.db)
}

func TestCancel_FreesCapacity(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	owner := domain.Caller{UserID: 1, Role: domain.RoleUser}

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 10, 0, 12, 0))
	requireAdmission(t, err, ReasonCapacity)

	cancelled, err := f.svc.CancelBooking(ctx, owner, b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	rebooked, err := f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, b.SlotID, rebooked.SlotID, "freed slot is reused")
	assertInvariants(t, f.db)
}

func TestCancel_PermissionsAndIdempotency(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, domain.Caller{UserID: 2, Role: domain.RoleUser}, b.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CancelBooking(ctx, domain.Caller{UserID: 2, Role: domain.RoleUser}, b.ID+100, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	reason := "plans changed"
	admin := domain.Caller{UserID: 99, Role: domain.RoleAdmin}
	got, err := f.svc.CancelBooking(ctx, admin, b.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, reason, *got.CancellationReason)

	again, err := f.svc.CancelBooking(ctx, domain.Caller{UserID: 1, Role: domain.RoleUser}, b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, again.Status)
	assert.Equal(t, reason, *again.CancellationReason, "second cancel leaves the booking untouched")

	assert.Equal(t, 1, f.notifier.count(notification.BookingCancelled))
}

func TestExtend_Success(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
	require.NoError(t, err)

	ext, err := f.svc.ExtendBooking(ctx, 1, b.ID, 1, 30)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, ext.ID)
	assert.True(t, ext.StartTime.Equal(b.EndTime))
	assert.True(t, ext.EndTime.Equal(msk(13, 30)))
	assert.Equal(t, b.ZoneName, ext.ZoneName)

	var extSlot domain.Slot
	require.NoError(t, f.db.First(&extSlot, ext.SlotID).Error)
	var origSlot domain.Slot
	require.NoError(t, f.db.First(&origSlot, b.SlotID).Error)
	assert.Equal(t, origSlot.PlaceID, extSlot.PlaceID, "extension stays on the same place")

	var orig domain.Booking
	require.NoError(t, f.db.First(&orig, b.ID).Error)
	assert.True(t, orig.EndTime.Equal(msk(12, 0)), "original booking is not modified")
	assert.Equal(t, domain.BookingActive, orig.Status)

	assert.Equal(t, 1, f.notifier.count(notification.BookingExtended))
	assertInvariants(t, f.db)
}

func TestExtend_LimitExceeded(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 9, 0, 15, 0))
	require.NoError(t, err)

	_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
	requireExtension(t, err, ExtensionLimitExceeded)
	assert.Contains(t, err.Error(), "максимальный лимит")

	var orig domain.Booking
	require.NoError(t, f.db.First(&orig, b.ID).Error)
	assert.True(t, orig.EndTime.Equal(msk(15, 0)))
	assert.Len(t, testutil.ActiveBookings(t, f.db), 1)
}

func TestExtend_LimitCoversWholeChain(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 14, 0))
	require.NoError(t, err)

	ext, err := f.svc.ExtendBooking(ctx, 1, b.ID, 2, 0)
	require.NoError(t, err)

	// 10:00-16:00 is already a 6h hold; extending the extension adds to it
	_, err = f.svc.ExtendBooking(ctx, 1, ext.ID, 4, 0)
	requireExtension(t, err, ExtensionLimitExceeded)
	_, err = f.svc.ExtendBooking(ctx, 1, ext.ID, 0, 30)
	requireExtension(t, err, ExtensionLimitExceeded)
	assert.Len(t, testutil.ActiveBookings(t, f.db), 2)
}

func TestExtend_ChainBrokenByCancellation(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	owner := domain.Caller{UserID: 1, Role: domain.RoleUser}

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 14, 0))
	require.NoError(t, err)
	ext, err := f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, owner, b.ID, nil)
	require.NoError(t, err)

	// only 14:00-15:00 is still held, so the count starts there
	next, err := f.svc.ExtendBooking(ctx, 1, ext.ID, 4, 0)
	require.NoError(t, err)
	assert.True(t, next.EndTime.Equal(msk(19, 0)))
	assertInvariants(t, f.db)
}

func TestExtend_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("conflict with own booking elsewhere", func(t *testing.T) {
		f := setup(t, 1)
		other, _ := testutil.SeedZone(t, f.db, "Loft", 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		_, err = f.svc.CreateBookingByTimeRange(ctx, 1, byTime(other.ID, 12, 0, 13, 0))
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionConflict)
	})

	t.Run("zone full", func(t *testing.T) {
		f := setup(t, 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 12, 0, 13, 0))
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionCapacity)
	})

	t.Run("exact slot taken", func(t *testing.T) {
		f := setup(t, 2)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		// lands on the first place, right after user 1
		_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 12, 0, 13, 0))
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionTimeTaken)
	})

	t.Run("partially taken", func(t *testing.T) {
		f := setup(t, 2)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		_, err = f.svc.CreateBookingByTimeRange(ctx, 2, byTime(f.zone.ID, 12, 30, 13, 30))
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionPartiallyTaken)
	})

	t.Run("not active", func(t *testing.T) {
		f := setup(t, 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		_, err = f.svc.CancelBooking(ctx, domain.Caller{UserID: 1, Role: domain.RoleUser}, b.ID, nil)
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionNotActive)
	})

	t.Run("zone unresolved", func(t *testing.T) {
		f := setup(t, 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		require.NoError(t, f.db.Delete(&domain.Place{}, f.places[0].ID).Error)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		requireExtension(t, err, ExtensionZoneUnresolved)
	})

	t.Run("missing slot", func(t *testing.T) {
		f := setup(t, 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)
		require.NoError(t, f.db.Delete(&domain.Slot{}, b.SlotID).Error)

		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 1, 0)
		assert.ErrorIs(t, err, ErrDataIntegrity)
	})

	t.Run("ownership and input", func(t *testing.T) {
		f := setup(t, 1)
		b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 12, 0))
		require.NoError(t, err)

		_, err = f.svc.ExtendBooking(ctx, 2, b.ID, 1, 0)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.ExtendBooking(ctx, 1, b.ID+100, 1, 0)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.svc.ExtendBooking(ctx, 1, b.ID, 0, 0)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestConcurrentAdmissionNeverExceedsCapacity(t *testing.T) {
	const capacity, users = 3, 12
	f := setup(t, capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBookingByTimeRange(ctx, int64(i+1), byTime(f.zone.ID, 10, 0, 12, 0))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAdmissionDenied)
	}
	assert.Equal(t, capacity, succeeded)
	assert.Len(t, testutil.ActiveBookings(t, f.db), capacity)
	assertInvariants(t, f.db)
}

func TestConcurrentSameUserCannotDoubleBook(t *testing.T) {
	f := setup(t, 4)
	other, _ := testutil.SeedZone(t, f.db, "Loft", 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		zoneID := f.zone.ID
		if i%2 == 1 {
			zoneID = other.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(zoneID, 10, 0, 12, 0))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assertInvariants(t, f.db)
}

func TestListPlacesAndSlots(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	places, err := f.svc.ListPlaces(ctx, f.zone.ID)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Место 1", places[0].Name)

	_, err = f.svc.ListPlaces(ctx, f.zone.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	// 02:00 Moscow on the 10th is still the 9th in UTC
	early := testutil.SeedSlot(t, f.db, f.places[0].ID, msk(2, 0), msk(3, 0))
	late := testutil.SeedSlot(t, f.db, f.places[0].ID, msk(22, 0), msk(23, 0))
	testutil.SeedSlot(t, f.db, f.places[0].ID, msk(0, 0).Add(24*time.Hour), msk(1, 0).Add(24*time.Hour))

	slots, err := f.svc.ListSlots(ctx, f.places[0].ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, early.ID, slots[0].ID)
	assert.Equal(t, late.ID, slots[1].ID)

	_, err = f.svc.ListSlots(ctx, f.places[0].ID, "tomorrow")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.ListSlots(ctx, f.places[1].ID+100, day)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	first, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 11, 0))
	require.NoError(t, err)
	next := TimeRangeRequest{ZoneID: f.zone.ID, Date: "2025-03-11", StartHour: 10, EndHour: 11}
	second, err := f.svc.CreateBookingByTimeRange(ctx, 1, next)
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, domain.Caller{UserID: 1, Role: domain.RoleUser}, first.ID, nil)
	require.NoError(t, err)

	all, err := f.svc.History(ctx, 1, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	onDay, err := f.svc.History(ctx, 1, HistoryFilter{DateFrom: day, DateTo: day})
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, first.ID, onDay[0].ID)

	cancelled, err := f.svc.History(ctx, 1, HistoryFilter{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	_, err = f.svc.History(ctx, 1, HistoryFilter{Status: "pending"})
	assert.ErrorIs(t, err, ErrValidation)

	none, err := f.svc.History(ctx, 2, HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetBooking(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	b, err := f.svc.CreateBookingByTimeRange(ctx, 1, byTime(f.zone.ID, 10, 0, 11, 0))
	require.NoError(t, err)

	got, err := f.svc.GetBooking(ctx, domain.Caller{UserID: 1, Role: domain.RoleUser}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.svc.GetBooking(ctx, domain.Caller{UserID: 2, Role: domain.RoleUser}, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetBooking(ctx, domain.Caller{UserID: 2, Role: domain.RoleAdmin}, b.ID)
	assert.NoError(t, err)
}
