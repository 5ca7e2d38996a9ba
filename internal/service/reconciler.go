package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/price-tracker/tracker-service/internal/adapter/email"
	"github.com/price-tracker/tracker-service/internal/adapter/nats"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/platform/logger"
	"github.com/price-tracker/tracker-service/internal/repository"
	"github.com/price-tracker/tracker-service/internal/scraper"
)

const natsSubjectPriceUpdated = "price.updated"

type ReconcilerConfig struct {
	Interval         time.Duration
	GroupConcurrency int
	AlertCooldown    time.Duration
	BestDealsLimit   int
}

// Reconciler periodically re-extracts every listing's price, recomputes
// each sibling group's lowest/highest extrema, appends price history and
// fires the alerts whose band contains the fresh price. One pass runs at
// a time; a tick arriving mid-pass is skipped.
type Reconciler struct {
	cfg ReconcilerConfig

	listingRepo  repository.ListingRepository
	alertRepo    repository.AlertRepository
	userRepo     repository.UserRepository
	cooldown     repository.AlertCooldown
	extractor    scraper.Extractor
	retrier      *scraper.Retrier
	sender       email.EmailSender
	msgPublisher nats.MessagePublisher
	log          logger.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(
	cfg ReconcilerConfig,
	listingRepo repository.ListingRepository,
	alertRepo repository.AlertRepository,
	userRepo repository.UserRepository,
	cooldown repository.AlertCooldown,
	extractor scraper.Extractor,
	retrier *scraper.Retrier,
	sender email.EmailSender,
	msgPublisher nats.MessagePublisher,
	log logger.Logger,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.GroupConcurrency <= 0 {
		cfg.GroupConcurrency = 8
	}
	if cfg.BestDealsLimit <= 0 {
		cfg.BestDealsLimit = defaultBestDealsLimit
	}
	return &Reconciler{
		cfg:          cfg,
		listingRepo:  listingRepo,
		alertRepo:    alertRepo,
		userRepo:     userRepo,
		cooldown:     cooldown,
		extractor:    extractor,
		retrier:      retrier,
		sender:       sender,
		msgPublisher: msgPublisher,
		log:          log,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the loop: one eager pass, then one per interval.
func (r *Reconciler) Start() {
	go func() {
		defer close(r.doneCh)

		// The loop owns its context. Stop lets the in-flight pass finish
		// persisting instead of cancelling it mid-write.
		ctx := context.Background()

		r.log.Infof("Price reconciliation started, interval %s", r.cfg.Interval)
		r.RunOnce(ctx)

		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				r.log.Info("Price reconciliation stopping")
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

// Stop signals the loop and waits for the current pass to complete,
// bounded by ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}

	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single reconciliation pass. Concurrent calls are
// collapsed: if a pass is already running the call is a logged no-op.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("Reconciliation pass already in progress, skipping this tick")
		return
	}
	defer r.running.Store(false)

	runID := uuid.NewString()
	log := r.log.With("run_id", runID)
	started := time.Now()

	listings, err := r.listingRepo.ListAll(ctx)
	if err != nil {
		log.Errorf("Failed to load listings: %v", err)
		return
	}
	if len(listings) == 0 {
		log.Debug("No listings to reconcile")
		return
	}

	groups := make(map[string][]entity.Listing)
	for _, l := range listings {
		groups[l.ProductIdentifier] = append(groups[l.ProductIdentifier], l)
	}
	log.Infof("Reconciling %d listings in %d groups", len(listings), len(groups))

	// Groups are independent; fan them out under a concurrency bound.
	sem := make(chan struct{}, r.cfg.GroupConcurrency)
	var wg sync.WaitGroup
	for identifier, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(identifier string, group []entity.Listing) {
			defer wg.Done()
			defer func() { <-sem }()
			r.reconcileGroup(ctx, log.With("product_identifier", identifier), group)
		}(identifier, group)
	}
	wg.Wait()

	log.Infof("Reconciliation pass finished in %s", time.Since(started).Round(time.Millisecond))
}

type extraction struct {
	listing entity.Listing
	result  *scraper.Result
	err     error
}

func (r *Reconciler) reconcileGroup(ctx context.Context, log logger.Logger, group []entity.Listing) {
	// Siblings are independent network calls; extract them concurrently
	// and only join at aggregation.
	results := make([]extraction, len(group))
	var wg sync.WaitGroup
	for i := range group {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			listing := group[i]
			var res *scraper.Result
			err := r.retrier.Do(ctx, func(ctx context.Context) error {
				var opErr error
				res, opErr = r.extractor.Extract(ctx, listing.URL, listing.Website)
				return opErr
			})
			results[i] = extraction{listing: listing, result: res, err: err}
		}(i)
	}
	wg.Wait()

	// Extrema come from the siblings that actually produced a price this
	// round. Listings that failed keep their current price but still
	// receive the freshest group view.
	var deals []Deal
	var lowest, highest float64
	for _, ex := range results {
		if ex.err != nil {
			log.Warnf("Extraction failed for listing %s (%s): %v", ex.listing.ID, ex.listing.Website, ex.err)
			continue
		}
		price := ex.result.Price
		deals = append(deals, Deal{Website: ex.listing.Website, Price: price, URL: ex.listing.URL})
		if lowest == 0 || price < lowest {
			lowest = price
		}
		if price > highest {
			highest = price
		}
	}

	checkedAt := time.Now().UTC()
	for _, ex := range results {
		extracted := ex.err == nil

		params := repository.PriceUpdateParams{
			ListingID: ex.listing.ID,
			Extracted: extracted,
			CheckedAt: checkedAt,
		}
		if len(deals) > 0 {
			params.LowestPrice = lowest
			params.HighestPrice = highest
		} else {
			// Nothing succeeded this round; extrema stay as they were.
			params.LowestPrice = ex.listing.LowestPrice
			params.HighestPrice = ex.listing.HighestPrice
		}
		if extracted {
			params.CurrentPrice = ex.result.Price
		}

		if err := r.listingRepo.UpdatePriceData(ctx, params); err != nil {
			log.Errorf("Failed to persist price data for listing %s: %v", ex.listing.ID, err)
			continue
		}

		if !extracted {
			continue
		}

		r.publishPriceUpdated(ctx, log, &ex.listing, ex.result.Price, checkedAt)
		r.notifyListing(ctx, log, &ex.listing, ex.result.Price, deals)
	}
}

type priceUpdatedEvent struct {
	ListingID         string         `json:"listing_id"`
	ProductIdentifier string         `json:"product_identifier"`
	Website           entity.Website `json:"website"`
	Price             float64        `json:"price"`
	CheckedAt         time.Time      `json:"checked_at"`
}

func (r *Reconciler) publishPriceUpdated(ctx context.Context, log logger.Logger, listing *entity.Listing, price float64, checkedAt time.Time) {
	event := priceUpdatedEvent{
		ListingID:         listing.ID,
		ProductIdentifier: listing.ProductIdentifier,
		Website:           listing.Website,
		Price:             price,
		CheckedAt:         checkedAt,
	}
	if err := r.msgPublisher.Publish(ctx, natsSubjectPriceUpdated, event); err != nil {
		log.Errorf("Failed to publish %s event for listing %s: %v", natsSubjectPriceUpdated, listing.ID, err)
	}
}

func (r *Reconciler) notifyListing(ctx context.Context, log logger.Logger, listing *entity.Listing, newPrice float64, deals []Deal) {
	alerts, err := r.alertRepo.ListActiveByListing(ctx, listing.ID)
	if err != nil {
		log.Errorf("Failed to load alerts for listing %s: %v", listing.ID, err)
		return
	}

	for i := range alerts {
		alert := alerts[i]

		eval := EvaluateAlert(&alert, newPrice, deals, r.cfg.BestDealsLimit)
		if !eval.Fire {
			continue
		}

		cooling, err := r.cooldown.IsCoolingDown(ctx, alert.ID)
		if err != nil {
			// A broken cooldown store must never swallow a notification.
			log.Warnf("Cooldown check failed for alert %s, notifying anyway: %v", alert.ID, err)
			cooling = false
		}
		if cooling {
			log.Debugf("Alert %s is cooling down, suppressing notification", alert.ID)
			continue
		}

		user, err := r.userRepo.GetByID(ctx, alert.UserID)
		if err != nil {
			log.Errorf("Failed to look up user %s for alert %s: %v", alert.UserID, alert.ID, err)
			continue
		}

		subject, bodyHTML, bodyText := renderAlertEmail(listing, &alert, newPrice, eval.BestDeals)
		if err := r.sender.Send(ctx, user.Email, subject, bodyHTML, bodyText); err != nil {
			// The band still holds next cycle; a failed send is not
			// recorded as a notification.
			log.Errorf("Failed to send alert %s to %s: %v", alert.ID, user.Email, err)
			continue
		}

		notifiedAt := time.Now().UTC()
		if err := r.alertRepo.SetLastNotified(ctx, alert.ID, notifiedAt); err != nil {
			log.Errorf("Failed to record notification time for alert %s: %v", alert.ID, err)
		}
		if err := r.cooldown.Arm(ctx, alert.ID, r.cfg.AlertCooldown); err != nil {
			log.Warnf("Failed to arm cooldown for alert %s: %v", alert.ID, err)
		}
	}
}
