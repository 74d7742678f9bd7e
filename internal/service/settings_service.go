package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Upsert(ctx context.Context, settings *models.Settings) error
}

type seatInitializer interface {
	InitializeSeats(ctx context.Context, total int) error
}

// UpdateSettingsRequest holds payload for updating the space settings.
type UpdateSettingsRequest struct {
	BrandName         string  `json:"brand_name" validate:"required"`
	LogoURL           *string `json:"logo_url"`
	PrimaryColor      *string `json:"primary_color"`
	TotalSeats        int     `json:"total_seats" validate:"required,gt=0"`
	DefaultMonthlyFee float64 `json:"default_monthly_fee" validate:"gte=0"`
}

// SettingsService manages the singleton space configuration.
type SettingsService struct {
	repo      settingsRepository
	seats     seatInitializer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the settings service.
func NewSettingsService(repo settingsRepository, seats seatInitializer, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, seats: seats, validator: validate, logger: logger}
}

// Get returns the current settings, or defaults when none are saved yet.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	if settings == nil {
		return &models.Settings{BrandName: "Study Space", TotalSeats: 0}, nil
	}
	return settings, nil
}

// Update saves the settings. Growing the seat count provisions the new
// seat rows; shrinking never removes rows so occupied seats survive.
func (s *SettingsService) Update(ctx context.Context, req UpdateSettingsRequest) (*models.Settings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	current, err := s.repo.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}

	settings := &models.Settings{
		BrandName:         req.BrandName,
		LogoURL:           req.LogoURL,
		PrimaryColor:      req.PrimaryColor,
		TotalSeats:        req.TotalSeats,
		DefaultMonthlyFee: req.DefaultMonthlyFee,
	}
	if current != nil {
		settings.ID = current.ID
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}

	if s.seats != nil {
		if err := s.seats.InitializeSeats(ctx, settings.TotalSeats); err != nil {
			s.logger.Error("settings saved but seat provisioning failed", zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "settings saved but seat provisioning failed")
		}
	}

	s.logger.Info("settings updated", zap.Int("total_seats", settings.TotalSeats))
	return settings, nil
}
