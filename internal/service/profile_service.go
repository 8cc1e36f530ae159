package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type profileService struct {
	profileRepo repository.ProfileRepository
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewProfileService creates a new customer profile service.
func NewProfileService(profileRepo repository.ProfileRepository, logger zerolog.Logger) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		validate:    newValidator(),
		logger:      logger.With().Str("service", "profile").Logger(),
	}
}

func (s *profileService) Get(ctx context.Context, identity *model.Identity) (*model.CustomerProfile, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}

	profile, err := s.profileRepo.Get(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, model.ErrProfileNotFound
	}

	return profile, nil
}

func (s *profileService) Save(ctx context.Context, identity *model.Identity, profile *model.CustomerProfile) (*model.CustomerProfile, error) {
	if identity == nil {
		return nil, model.ErrUnauthenticated
	}
	if profile == nil {
		return nil, model.NewValidationError("profile is required")
	}

	p := &model.CustomerProfile{
		ID:           identity.ID,
		FirstName:    strings.TrimSpace(profile.FirstName),
		LastName:     strings.TrimSpace(profile.LastName),
		Cedula:       strings.TrimSpace(profile.Cedula),
		Phone:        strings.TrimSpace(profile.Phone),
		Country:      strings.TrimSpace(profile.Country),
		State:        strings.TrimSpace(profile.State),
		City:         strings.TrimSpace(profile.City),
		AddressLine1: strings.TrimSpace(profile.AddressLine1),
	}
	if err := validateStruct(s.validate, p); err != nil {
		return nil, err
	}

	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Debug().Str("user_id", p.ID).Msg("profile saved")

	return p, nil
}
