package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/platform/logger"
	"github.com/price-tracker/tracker-service/internal/repository"
	"github.com/price-tracker/tracker-service/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Create(ctx context.Context, listing *entity.Listing) (string, error) {
	args := m.Called(ctx, listing)
	return args.String(0), args.Error(1)
}
func (m *MockListingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}
func (m *MockListingRepository) ListByUser(ctx context.Context, userID string) ([]entity.Listing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}
func (m *MockListingRepository) ListAll(ctx context.Context) ([]entity.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}
func (m *MockListingRepository) ListLowestPriced(ctx context.Context, limit int64) ([]entity.Listing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}
func (m *MockListingRepository) UpdateDetails(ctx context.Context, params repository.UpdateListingParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockListingRepository) UpdatePriceData(ctx context.Context, params repository.PriceUpdateParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockListingRepository) Delete(ctx context.Context, listingID, userID string) error {
	args := m.Called(ctx, listingID, userID)
	return args.Error(0)
}

type MockAlertRepository struct{ mock.Mock }

func (m *MockAlertRepository) Create(ctx context.Context, alert *entity.PriceAlert) (string, error) {
	args := m.Called(ctx, alert)
	return args.String(0), args.Error(1)
}
func (m *MockAlertRepository) GetByID(ctx context.Context, alertID string) (*entity.PriceAlert, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PriceAlert), args.Error(1)
}
func (m *MockAlertRepository) ListByUser(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PriceAlert), args.Error(1)
}
func (m *MockAlertRepository) ListActiveByListing(ctx context.Context, listingID string) ([]entity.PriceAlert, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PriceAlert), args.Error(1)
}
func (m *MockAlertRepository) Update(ctx context.Context, params repository.UpdateAlertParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockAlertRepository) SetLastNotified(ctx context.Context, alertID string, notifiedAt time.Time) error {
	args := m.Called(ctx, alertID, notifiedAt)
	return args.Error(0)
}
func (m *MockAlertRepository) Delete(ctx context.Context, alertID, userID string) error {
	args := m.Called(ctx, alertID, userID)
	return args.Error(0)
}

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) GetByID(ctx context.Context, userID string) (*entity.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

type MockAlertCooldown struct{ mock.Mock }

func (m *MockAlertCooldown) IsCoolingDown(ctx context.Context, alertID string) (bool, error) {
	args := m.Called(ctx, alertID)
	return args.Bool(0), args.Error(1)
}
func (m *MockAlertCooldown) Arm(ctx context.Context, alertID string, window time.Duration) error {
	args := m.Called(ctx, alertID, window)
	return args.Error(0)
}

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, url string, website entity.Website) (*scraper.Result, error) {
	args := m.Called(ctx, url, website)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scraper.Result), args.Error(1)
}

type MockEmailSender struct{ mock.Mock }

func (m *MockEmailSender) Send(ctx context.Context, to, subject, bodyHTML, bodyText string) error {
	args := m.Called(ctx, to, subject, bodyHTML, bodyText)
	return args.Error(0)
}

type MockMessagePublisher struct{ mock.Mock }

func (m *MockMessagePublisher) Publish(ctx context.Context, subject string, message interface{}) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}
func (m *MockMessagePublisher) PublishRaw(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type NoOpLogger struct{}

func (l *NoOpLogger) Init()                                          {}
func (l *NoOpLogger) Debug(args ...interface{})                      {}
func (l *NoOpLogger) Debugf(template string, args ...interface{})    {}
func (l *NoOpLogger) Info(args ...interface{})                       {}
func (l *NoOpLogger) Infof(template string, args ...interface{})     {}
func (l *NoOpLogger) Warn(args ...interface{})                       {}
func (l *NoOpLogger) Warnf(template string, args ...interface{})     {}
func (l *NoOpLogger) Error(args ...interface{})                      {}
func (l *NoOpLogger) Errorf(template string, args ...interface{})    {}
func (l *NoOpLogger) DPanic(args ...interface{})                     {}
func (l *NoOpLogger) DPanicf(template string, args ...interface{})   {}
func (l *NoOpLogger) Fatal(args ...interface{})                      {}
func (l *NoOpLogger) Fatalf(template string, args ...interface{})    {}
func (l *NoOpLogger) With(args ...interface{}) logger.Logger         { return l }

type reconcilerFixture struct {
	listingRepo *MockListingRepository
	alertRepo   *MockAlertRepository
	userRepo    *MockUserRepository
	cooldown    *MockAlertCooldown
	extractor   *MockExtractor
	sender      *MockEmailSender
	publisher   *MockMessagePublisher
	reconciler  *Reconciler
}

func newReconcilerFixture(cfg ReconcilerConfig) *reconcilerFixture {
	f := &reconcilerFixture{
		listingRepo: new(MockListingRepository),
		alertRepo:   new(MockAlertRepository),
		userRepo:    new(MockUserRepository),
		cooldown:    new(MockAlertCooldown),
		extractor:   new(MockExtractor),
		sender:      new(MockEmailSender),
		publisher:   new(MockMessagePublisher),
	}
	f.reconciler = NewReconciler(
		cfg,
		f.listingRepo,
		f.alertRepo,
		f.userRepo,
		f.cooldown,
		f.extractor,
		scraper.NewRetrier(1, time.Millisecond),
		f.sender,
		f.publisher,
		&NoOpLogger{},
	)
	return f
}

func testListing(id, identifier string, website entity.Website, price float64) entity.Listing {
	return entity.Listing{
		ID:                id,
		UserID:            "user-1",
		ProductIdentifier: identifier,
		Name:              "Test Product",
		URL:               "http://" + string(website) + ".example/" + id,
		Website:           website,
		CurrentPrice:      price,
		LowestPrice:       price,
		HighestPrice:      price,
	}
}

func TestReconciler_RunOnce_ComputesGroupExtrema(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})

	a := testListing("l1", "xm4", entity.WebsiteAmazon, 120)
	b := testListing("l2", "xm4", entity.WebsiteFlipkart, 110)
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{a, b}, nil)

	f.extractor.On("Extract", mock.Anything, a.URL, a.Website).Return(&scraper.Result{Price: 250}, nil)
	f.extractor.On("Extract", mock.Anything, b.URL, b.Website).Return(&scraper.Result{Price: 100}, nil)

	var mu sync.Mutex
	updates := map[string]repository.PriceUpdateParams{}
	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		params := args.Get(1).(repository.PriceUpdateParams)
		mu.Lock()
		updates[params.ListingID] = params
		mu.Unlock()
	}).Return(nil)

	f.publisher.On("Publish", mock.Anything, natsSubjectPriceUpdated, mock.Anything).Return(nil)
	f.alertRepo.On("ListActiveByListing", mock.Anything, mock.Anything).Return([]entity.PriceAlert{}, nil)

	f.reconciler.RunOnce(context.Background())

	require.Len(t, updates, 2)
	for id, params := range updates {
		assert.True(t, params.Extracted, "listing %s", id)
		assert.Equal(t, 100.0, params.LowestPrice)
		assert.Equal(t, 250.0, params.HighestPrice)
	}
	assert.Equal(t, 250.0, updates["l1"].CurrentPrice)
	assert.Equal(t, 100.0, updates["l2"].CurrentPrice)

	// lowest <= current <= highest for every updated listing
	for _, params := range updates {
		assert.LessOrEqual(t, params.LowestPrice, params.CurrentPrice)
		assert.LessOrEqual(t, params.CurrentPrice, params.HighestPrice)
	}
}

func TestReconciler_RunOnce_SiblingFailureDoesNotAbortGroup(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})

	failing := testListing("l1", "xm4", entity.WebsiteAmazon, 120)
	healthy := testListing("l2", "xm4", entity.WebsiteFlipkart, 110)
	other := testListing("l3", "pixel8", entity.WebsiteCroma, 500)
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{failing, healthy, other}, nil)

	f.extractor.On("Extract", mock.Anything, failing.URL, failing.Website).
		Return(nil, &scraper.NetworkError{URL: failing.URL, StatusCode: 503})
	f.extractor.On("Extract", mock.Anything, healthy.URL, healthy.Website).Return(&scraper.Result{Price: 90}, nil)
	f.extractor.On("Extract", mock.Anything, other.URL, other.Website).Return(&scraper.Result{Price: 450}, nil)

	var mu sync.Mutex
	updates := map[string]repository.PriceUpdateParams{}
	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		params := args.Get(1).(repository.PriceUpdateParams)
		mu.Lock()
		updates[params.ListingID] = params
		mu.Unlock()
	}).Return(nil)

	f.publisher.On("Publish", mock.Anything, natsSubjectPriceUpdated, mock.Anything).Return(nil)
	f.alertRepo.On("ListActiveByListing", mock.Anything, mock.Anything).Return([]entity.PriceAlert{}, nil)

	f.reconciler.RunOnce(context.Background())

	require.Len(t, updates, 3, "every listing gets persisted, failed extraction included")

	// The failed sibling keeps its price but receives the group's fresh extrema.
	assert.False(t, updates["l1"].Extracted)
	assert.Equal(t, 90.0, updates["l1"].LowestPrice)
	assert.Equal(t, 90.0, updates["l1"].HighestPrice)

	assert.True(t, updates["l2"].Extracted)
	assert.Equal(t, 90.0, updates["l2"].CurrentPrice)

	// The unrelated group is untouched by the failure.
	assert.True(t, updates["l3"].Extracted)
	assert.Equal(t, 450.0, updates["l3"].CurrentPrice)
	assert.Equal(t, 450.0, updates["l3"].LowestPrice)
}

func TestReconciler_RunOnce_AllSiblingsFailKeepsExtrema(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})

	listing := testListing("l1", "xm4", entity.WebsiteAmazon, 120)
	listing.LowestPrice = 100
	listing.HighestPrice = 150
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{listing}, nil)

	f.extractor.On("Extract", mock.Anything, listing.URL, listing.Website).
		Return(nil, &scraper.NetworkError{URL: listing.URL, StatusCode: 500})

	var got repository.PriceUpdateParams
	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(repository.PriceUpdateParams)
	}).Return(nil)

	f.reconciler.RunOnce(context.Background())

	assert.False(t, got.Extracted)
	assert.Equal(t, 100.0, got.LowestPrice, "previous extrema survive a fully failed round")
	assert.Equal(t, 150.0, got.HighestPrice)
	assert.False(t, got.CheckedAt.IsZero(), "lastChecked still advances on failure")
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_RunOnce_PersistFailureSkipsNotification(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})

	a := testListing("l1", "xm4", entity.WebsiteAmazon, 120)
	b := testListing("l2", "xm4", entity.WebsiteFlipkart, 110)
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{a, b}, nil)

	f.extractor.On("Extract", mock.Anything, a.URL, a.Website).Return(&scraper.Result{Price: 100}, nil)
	f.extractor.On("Extract", mock.Anything, b.URL, b.Website).Return(&scraper.Result{Price: 110}, nil)

	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.MatchedBy(func(p repository.PriceUpdateParams) bool {
		return p.ListingID == "l1"
	})).Return(errors.New("write conflict"))
	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.MatchedBy(func(p repository.PriceUpdateParams) bool {
		return p.ListingID == "l2"
	})).Return(nil)

	f.publisher.On("Publish", mock.Anything, natsSubjectPriceUpdated, mock.Anything).Return(nil)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l2").Return([]entity.PriceAlert{}, nil)

	f.reconciler.RunOnce(context.Background())

	f.alertRepo.AssertNotCalled(t, "ListActiveByListing", mock.Anything, "l1")
	f.alertRepo.AssertCalled(t, "ListActiveByListing", mock.Anything, "l2")
}

func alertFixture(id string, min, max float64) entity.PriceAlert {
	return entity.PriceAlert{
		ID:        id,
		UserID:    "user-1",
		ListingID: "l1",
		MinPrice:  min,
		MaxPrice:  max,
		IsActive:  true,
	}
}

func singleListingFixture(f *reconcilerFixture, price float64) entity.Listing {
	listing := testListing("l1", "xm4", entity.WebsiteAmazon, price)
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{listing}, nil)
	f.extractor.On("Extract", mock.Anything, listing.URL, listing.Website).Return(&scraper.Result{Price: price}, nil)
	f.listingRepo.On("UpdatePriceData", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, natsSubjectPriceUpdated, mock.Anything).Return(nil)
	return listing
}

func TestReconciler_Notify_SendsAndRecordsNotification(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour, AlertCooldown: 6 * time.Hour})
	singleListingFixture(f, 150)

	alert := alertFixture("a1", 100, 200)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l1").Return([]entity.PriceAlert{alert}, nil)
	f.cooldown.On("IsCoolingDown", mock.Anything, "a1").Return(false, nil)
	f.userRepo.On("GetByID", mock.Anything, "user-1").Return(&entity.User{ID: "user-1", Email: "u@example.com"}, nil)
	f.sender.On("Send", mock.Anything, "u@example.com", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.alertRepo.On("SetLastNotified", mock.Anything, "a1", mock.Anything).Return(nil)
	f.cooldown.On("Arm", mock.Anything, "a1", 6*time.Hour).Return(nil)

	f.reconciler.RunOnce(context.Background())

	f.sender.AssertExpectations(t)
	f.alertRepo.AssertCalled(t, "SetLastNotified", mock.Anything, "a1", mock.Anything)
	f.cooldown.AssertCalled(t, "Arm", mock.Anything, "a1", 6*time.Hour)
}

func TestReconciler_Notify_FailedSendIsNotRecorded(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour, AlertCooldown: 6 * time.Hour})
	singleListingFixture(f, 150)

	alert := alertFixture("a1", 100, 200)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l1").Return([]entity.PriceAlert{alert}, nil)
	f.cooldown.On("IsCoolingDown", mock.Anything, "a1").Return(false, nil)
	f.userRepo.On("GetByID", mock.Anything, "user-1").Return(&entity.User{ID: "user-1", Email: "u@example.com"}, nil)
	f.sender.On("Send", mock.Anything, "u@example.com", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unavailable"))

	f.reconciler.RunOnce(context.Background())

	f.alertRepo.AssertNotCalled(t, "SetLastNotified", mock.Anything, mock.Anything, mock.Anything)
	f.cooldown.AssertNotCalled(t, "Arm", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Notify_CooldownSuppressesRepeat(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour, AlertCooldown: 6 * time.Hour})
	singleListingFixture(f, 150)

	alert := alertFixture("a1", 100, 200)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l1").Return([]entity.PriceAlert{alert}, nil)
	f.cooldown.On("IsCoolingDown", mock.Anything, "a1").Return(true, nil)

	f.reconciler.RunOnce(context.Background())

	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Notify_BrokenCooldownStoreStillNotifies(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour, AlertCooldown: 6 * time.Hour})
	singleListingFixture(f, 150)

	alert := alertFixture("a1", 100, 200)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l1").Return([]entity.PriceAlert{alert}, nil)
	f.cooldown.On("IsCoolingDown", mock.Anything, "a1").Return(false, errors.New("redis down"))
	f.userRepo.On("GetByID", mock.Anything, "user-1").Return(&entity.User{ID: "user-1", Email: "u@example.com"}, nil)
	f.sender.On("Send", mock.Anything, "u@example.com", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.alertRepo.On("SetLastNotified", mock.Anything, "a1", mock.Anything).Return(nil)
	f.cooldown.On("Arm", mock.Anything, "a1", 6*time.Hour).Return(errors.New("redis down"))

	f.reconciler.RunOnce(context.Background())

	f.sender.AssertExpectations(t)
}

func TestReconciler_Notify_OutOfBandDoesNotFire(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})
	singleListingFixture(f, 250)

	alert := alertFixture("a1", 100, 200)
	f.alertRepo.On("ListActiveByListing", mock.Anything, "l1").Return([]entity.PriceAlert{alert}, nil)

	f.reconciler.RunOnce(context.Background())

	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_RunOnce_OverlappingRunIsSkipped(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})

	release := make(chan struct{})
	started := make(chan struct{})
	f.listingRepo.On("ListAll", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]entity.Listing{}, nil).Once()

	done := make(chan struct{})
	go func() {
		f.reconciler.RunOnce(context.Background())
		close(done)
	}()
	<-started

	// second invocation while the first is mid-pass must be a no-op
	f.reconciler.RunOnce(context.Background())

	close(release)
	<-done

	f.listingRepo.AssertNumberOfCalls(t, "ListAll", 1)
}

func TestReconciler_StartStop(t *testing.T) {
	f := newReconcilerFixture(ReconcilerConfig{Interval: time.Hour})
	f.listingRepo.On("ListAll", mock.Anything).Return([]entity.Listing{}, nil)

	f.reconciler.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.reconciler.Stop(ctx))

	// the eager startup pass ran before Stop returned
	f.listingRepo.AssertCalled(t, "ListAll", mock.Anything)
}
