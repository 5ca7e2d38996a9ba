package service

import (
	"context"
	"fmt"
	"time"

	"github.com/price-tracker/tracker-service/internal/adapter/email"
	"github.com/price-tracker/tracker-service/internal/domain/entity"
	"github.com/price-tracker/tracker-service/internal/platform/logger"
	"github.com/price-tracker/tracker-service/internal/repository"
)

type CreateAlertParams struct {
	UserID           string
	ListingID        string
	MinPrice         float64
	MaxPrice         float64
	NotificationType entity.NotificationType
}

type AlertService interface {
	CreateAlert(ctx context.Context, params CreateAlertParams) (*entity.PriceAlert, error)
	ListUserAlerts(ctx context.Context, userID string) ([]entity.PriceAlert, error)
	UpdateAlert(ctx context.Context, params repository.UpdateAlertParams) error
	DeleteAlert(ctx context.Context, alertID, userID string) error
	SendTestEmail(ctx context.Context, userID string) error
}

type alertService struct {
	alertRepo   repository.AlertRepository
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	sender      email.EmailSender
	log         logger.Logger
}

func NewAlertService(
	alertRepo repository.AlertRepository,
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	sender email.EmailSender,
	log logger.Logger,
) AlertService {
	return &alertService{
		alertRepo:   alertRepo,
		listingRepo: listingRepo,
		userRepo:    userRepo,
		sender:      sender,
		log:         log,
	}
}

func (s *alertService) CreateAlert(ctx context.Context, params CreateAlertParams) (*entity.PriceAlert, error) {
	if _, err := s.listingRepo.GetByID(ctx, params.ListingID); err != nil {
		return nil, fmt.Errorf("listing %s: %w", params.ListingID, err)
	}

	alert, err := entity.NewPriceAlert(params.UserID, params.ListingID, params.MinPrice, params.MaxPrice, params.NotificationType, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("invalid alert: %w", err)
	}

	id, err := s.alertRepo.Create(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}
	alert.ID = id

	s.log.Infof("Alert %s created for listing %s, band [%.2f, %.2f]", id, params.ListingID, params.MinPrice, params.MaxPrice)
	return alert, nil
}

func (s *alertService) ListUserAlerts(ctx context.Context, userID string) ([]entity.PriceAlert, error) {
	return s.alertRepo.ListByUser(ctx, userID)
}

func (s *alertService) UpdateAlert(ctx context.Context, params repository.UpdateAlertParams) error {
	if params.MaxPrice < params.MinPrice {
		return fmt.Errorf("max price cannot be lower than min price")
	}
	return s.alertRepo.Update(ctx, params)
}

func (s *alertService) DeleteAlert(ctx context.Context, alertID, userID string) error {
	return s.alertRepo.Delete(ctx, alertID, userID)
}

// SendTestEmail lets users verify their address before relying on alerts.
func (s *alertService) SendTestEmail(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", userID, err)
	}

	subject, bodyHTML, bodyText := renderTestEmail()
	if err := s.sender.Send(ctx, user.Email, subject, bodyHTML, bodyText); err != nil {
		return fmt.Errorf("failed to send test email: %w", err)
	}
	return nil
}
