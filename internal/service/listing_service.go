package service

import (
	"context"
	"fmt"
	"time"

	"github.com/price-tracker/tracker-service/internal/adapter/email"
	"github.com/price-tracker/tracker-service/internal/adapter/nats"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/platform/logger"
	"github.com/price-tracker/tracker-service/internal/repository"
	"github.com/price-tracker/tracker-service/internal/scraper"
)

const natsSubjectListingCreated = "listing.created"

type CreateListingParams struct {
	UserID            string
	ProductIdentifier string
	Name              string
	URL               string
	Website           entity.Website
}

type ListingService interface {
	CreateListing(ctx context.Context, params CreateListingParams) (*entity.Listing, error)
	GetListing(ctx context.Context, listingID, userID string) (*entity.Listing, error)
	ListUserListings(ctx context.Context, userID string) ([]entity.Listing, error)
	ListLowestPriced(ctx context.Context, limit int64) ([]entity.Listing, error)
	UpdateListing(ctx context.Context, params repository.UpdateListingParams) error
	DeleteListing(ctx context.Context, listingID, userID string) error
}

type listingService struct {
	listingRepo  repository.ListingRepository
	userRepo     repository.UserRepository
	extractor    scraper.Extractor
	retrier      *scraper.Retrier
	sender       email.EmailSender
	msgPublisher nats.MessagePublisher
	log          logger.Logger
}

func NewListingService(
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	extractor scraper.Extractor,
	retrier *scraper.Retrier,
	sender email.EmailSender,
	msgPublisher nats.MessagePublisher,
	log logger.Logger,
) ListingService {
	return &listingService{
		listingRepo:  listingRepo,
		userRepo:     userRepo,
		extractor:    extractor,
		retrier:      retrier,
		sender:       sender,
		msgPublisher: msgPublisher,
		log:          log,
	}
}

// CreateListing extracts the price synchronously so a bad URL or an
// unsupported site is reported to the user right away instead of
// surfacing as a silently stale listing later.
func (s *listingService) CreateListing(ctx context.Context, params CreateListingParams) (*entity.Listing, error) {
	s.log.Infof("Creating listing for user %s: %s on %s", params.UserID, params.URL, params.Website)

	var result *scraper.Result
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.extractor.Extract(ctx, params.URL, params.Website)
		return opErr
	})
	if err != nil {
		s.log.Warnf("Price extraction failed for %s: %v", params.URL, err)
		return nil, fmt.Errorf("could not extract price from URL: %w", err)
	}

	name := params.Name
	if name == "" {
		name = result.Name
	}

	now := time.Now().UTC()
	listing, err := entity.NewListing(params.UserID, params.ProductIdentifier, name, params.URL, params.Website, result.Price, now)
	if err != nil {
		return nil, fmt.Errorf("invalid listing: %w", err)
	}
	listing.Brand = result.Brand
	listing.Category = result.Category

	id, err := s.listingRepo.Create(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}
	listing.ID = id

	if err := s.msgPublisher.Publish(ctx, natsSubjectListingCreated, listing); err != nil {
		s.log.Errorf("Failed to publish %s event for listing %s: %v", natsSubjectListingCreated, id, err)
	}

	s.sendCreationEmail(ctx, listing)

	s.log.Infof("Listing %s created at price %.2f", id, listing.CurrentPrice)
	return listing, nil
}

// Confirmation mail is best effort; the listing already exists.
func (s *listingService) sendCreationEmail(ctx context.Context, listing *entity.Listing) {
	user, err := s.userRepo.GetByID(ctx, listing.UserID)
	if err != nil {
		s.log.Warnf("Failed to look up user %s for confirmation email: %v", listing.UserID, err)
		return
	}

	subject, bodyHTML, bodyText := renderListingCreatedEmail(listing)
	if err := s.sender.Send(ctx, user.Email, subject, bodyHTML, bodyText); err != nil {
		s.log.Warnf("Failed to send confirmation email for listing %s: %v", listing.ID, err)
	}
}

func (s *listingService) GetListing(ctx context.Context, listingID, userID string) (*entity.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return listing, nil
}

func (s *listingService) ListUserListings(ctx context.Context, userID string) ([]entity.Listing, error) {
	return s.listingRepo.ListByUser(ctx, userID)
}

func (s *listingService) ListLowestPriced(ctx context.Context, limit int64) ([]entity.Listing, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.listingRepo.ListLowestPriced(ctx, limit)
}

// UpdateListing only touches descriptive fields. Price fields belong to
// the reconciliation loop and are not writable here.
func (s *listingService) UpdateListing(ctx context.Context, params repository.UpdateListingParams) error {
	if _, err := entity.ParseWebsite(string(params.Website)); err != nil {
		return err
	}
	return s.listingRepo.UpdateDetails(ctx, params)
}

func (s *listingService) DeleteListing(ctx context.Context, listingID, userID string) error {
	return s.listingRepo.Delete(ctx, listingID, userID)
}
