package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	instituteserrors "freezefit/internal/institutes/errors"
	"freezefit/internal/institutes/repository"
	"freezefit/internal/institutes/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/cache"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/geocode"
	"freezefit/pkg/locale"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

const (
	instituteKeyPrefix = "institute:"
	searchKeyPrefix    = "institutes:search:"
)

type InstituteService interface {
	Create(ctx context.Context, p *auth.Principal, institute *model.Institute) error
	GetByID(ctx context.Context, id string) (*model.Institute, error)
	Search(ctx context.Context, search *model.InstituteSearch) ([]*model.Institute, int64, error)
	GetByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]*model.Institute, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, updates *model.InstituteUpdate) (*model.Institute, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	Invalidate(ctx context.Context, id string)
}

type searchPage struct {
	Institutes []*model.Institute `json:"institutes"`
	Total      int64              `json:"total"`
}

type instituteService struct {
	repo      repository.InstituteRepository
	validator *validator.InstituteValidator
	geocoder  geocode.Geocoder
	cache     cache.Cache
	cfg       *config.Config
}

func NewInstituteService(
	repo repository.InstituteRepository,
	validator *validator.InstituteValidator,
	geocoder geocode.Geocoder,
	cache cache.Cache,
	cfg *config.Config,
) InstituteService {
	return &instituteService{
		repo:      repo,
		validator: validator,
		geocoder:  geocoder,
		cache:     cache,
		cfg:       cfg,
	}
}

func (s *instituteService) Create(ctx context.Context, p *auth.Principal, institute *model.Institute) error {
	s.sanitize(institute)
	s.applyDefaultsForNewInstitute(institute, p)

	if err := s.validator.ValidateInstitute(institute); err != nil {
		s.cfg.Log.Warn("Institute validation failed",
			"name", institute.Name,
			"owner_id", institute.OwnerID,
			"error", err,
		)
		return validation.ToAppError("Institute", err)
	}

	if institute.Latitude == nil {
		s.locate(ctx, institute)
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, institute)
	})
	if err != nil {
		if errors.Is(err, instituteserrors.ErrOwnerNotFound) {
			return apperrors.Unauthorized("Account no longer exists")
		}
		s.cfg.Log.Error("Failed to create institute",
			"name", institute.Name,
			"owner_id", institute.OwnerID,
			"error", err,
		)
		return apperrors.Internal("Failed to create institute", err)
	}

	s.invalidateSearch(ctx)

	s.cfg.Log.Info("Institute created successfully",
		"id", institute.ID,
		"name", institute.Name,
		"city", institute.City,
		"geocoded", institute.Latitude != nil,
	)
	return nil
}

func (s *instituteService) GetByID(ctx context.Context, id string) (*model.Institute, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Institute ID cannot be empty")
	}

	key := instituteKeyPrefix + id
	var cached model.Institute
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	institute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, instituteserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Institute", id)
		}
		if errors.Is(err, instituteserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid institute ID format")
		}
		s.cfg.Log.Error("Failed to get institute by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve institute", err)
	}

	if err := cache.SetJSON(ctx, s.cache, key, institute, s.cfg.CacheTTL); err != nil {
		s.cfg.Log.Warn("Failed to cache institute", "id", id, "error", err)
	}
	return institute, nil
}

func (s *instituteService) Search(ctx context.Context, search *model.InstituteSearch) ([]*model.Institute, int64, error) {
	search.Query = sanitizer.TrimAndNormalize(search.Query)
	search.City = sanitizer.NormalizeCity(search.City)
	search.Amenity = sanitizer.NormalizeTag(search.Amenity)
	search.Sort = strings.ToLower(strings.TrimSpace(search.Sort))
	search.Limit = config.NormalizePaginationLimit(search.Limit)
	search.Offset = config.NormalizeOffset(search.Offset)

	if err := s.validator.ValidateSearch(search); err != nil {
		return nil, 0, validation.ToAppError("Search", err)
	}
	if search.Sort == model.SortDistance && !search.HasLocation() {
		return nil, 0, apperrors.InvalidInput("sort=distance requires lat and lng")
	}
	if search.RadiusKM != nil && !search.HasLocation() {
		return nil, 0, apperrors.InvalidInput("radius_km requires lat and lng")
	}

	key := searchKey(search)
	var page searchPage
	if cache.GetJSON(ctx, s.cache, key, &page) {
		return page.Institutes, page.Total, nil
	}

	var count int64
	var institutes []*model.Institute
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountSearch(ctx, search)
		if err != nil {
			s.cfg.Log.Error("Failed to count institutes", "error", err)
			errCount = apperrors.Internal("Failed to count institutes", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		institutes, err = s.repo.Search(ctx, search)
		if err != nil {
			s.cfg.Log.Error("Failed to search institutes", "error", err)
			errFind = apperrors.Internal("Failed to search institutes", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	page = searchPage{Institutes: institutes, Total: count}
	if err := cache.SetJSON(ctx, s.cache, key, page, s.cfg.SearchCacheTTL); err != nil {
		s.cfg.Log.Warn("Failed to cache search page", "error", err)
	}

	s.cfg.Log.Debug("Institute search",
		"query", search.Query,
		"city", search.City,
		"results", len(institutes),
		"total", count,
	)
	return institutes, count, nil
}

func (s *instituteService) GetByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]*model.Institute, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var institutes []*model.Institute
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByOwner(ctx, ownerID)
		if err != nil {
			s.cfg.Log.Error("Failed to count provider institutes", "owner_id", ownerID, "error", err)
			errCount = apperrors.Internal("Failed to count institutes", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		institutes, err = s.repo.FindByOwner(ctx, ownerID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list provider institutes", "owner_id", ownerID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve institutes", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return institutes, count, nil
}

func (s *instituteService) Update(ctx context.Context, p *auth.Principal, id string, updates *model.InstituteUpdate) (*model.Institute, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, existing); err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	merged := mergeInstituteUpdates(existing, updates)

	if err := s.validator.ValidateInstitute(merged); err != nil {
		s.cfg.Log.Warn("Institute validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("Institute", err)
	}

	explicitCoordinates := updates.Latitude != nil || updates.Longitude != nil
	if addressChanged(existing, merged) && !explicitCoordinates {
		merged.Latitude, merged.Longitude = nil, nil
		s.locate(ctx, merged)
	}

	changes := diffInstitute(existing, merged)
	if changes.Len() == 0 {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, instituteserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Institute", id)
		}
		s.cfg.Log.Error("Failed to update institute", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update institute", err)
	}

	s.Invalidate(ctx, id)

	s.cfg.Log.Info("Institute updated successfully", "id", id, "fields", changes.Columns())
	return updated, nil
}

func (s *instituteService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(p, existing); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, instituteserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Institute", id)
		}
		s.cfg.Log.Error("Failed to delete institute", "id", id, "error", err)
		return apperrors.Internal("Failed to delete institute", err)
	}

	s.Invalidate(ctx, id)

	s.cfg.Log.Info("Institute deleted successfully", "id", id, "deleted_by", p.UserID)
	return nil
}

// Invalidate drops the cached institute and every cached search page.
func (s *instituteService) Invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, instituteKeyPrefix+id); err != nil {
		s.cfg.Log.Warn("Failed to invalidate institute cache", "id", id, "error", err)
	}
	s.invalidateSearch(ctx)
}

func (s *instituteService) invalidateSearch(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, searchKeyPrefix); err != nil {
		s.cfg.Log.Warn("Failed to invalidate search cache", "error", err)
	}
}

// load reads around the cache; writes must see the stored row.
func (s *instituteService) load(ctx context.Context, id string) (*model.Institute, error) {
	institute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, instituteserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Institute", id)
		}
		if errors.Is(err, instituteserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid institute ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve institute", err)
	}
	return institute, nil
}

func authorize(p *auth.Principal, institute *model.Institute) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if p.IsAdmin() || p.UserID == institute.OwnerID {
		return nil
	}
	return apperrors.Forbidden("You do not manage this institute")
}

// locate fills coordinates from the address. Failures leave them empty.
func (s *instituteService) locate(ctx context.Context, institute *model.Institute) {
	if s.geocoder == nil {
		return
	}
	address := geocode.Address(institute.Street, institute.PostalCode+" "+institute.City, institute.Country)
	coords, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		s.cfg.Log.Warn("Geocoding failed, institute stored without coordinates",
			"address", address,
			"error", err,
		)
		return
	}
	institute.Latitude = &coords.Latitude
	institute.Longitude = &coords.Longitude
}

func (s *instituteService) sanitize(institute *model.Institute) {
	institute.Name = sanitizer.NormalizeName(institute.Name)
	institute.Description = sanitizer.SanitizeText(institute.Description)
	institute.Street = sanitizer.TrimAndNormalize(institute.Street)
	institute.PostalCode = sanitizer.NormalizePostalCode(institute.PostalCode)
	institute.City = sanitizer.NormalizeCity(institute.City)
	institute.Country = sanitizer.NormalizeCountry(institute.Country)
	institute.Phone = normalizePhone(institute.Phone)
	institute.Email = sanitizer.NormalizeEmail(institute.Email)
	institute.WebsiteURL = sanitizer.NormalizeURL(institute.WebsiteURL)
	institute.ImageURL = sanitizer.NormalizeURL(institute.ImageURL)
	institute.Amenities = sanitizer.NormalizeAmenities(institute.Amenities)
	institute.Timezone = strings.TrimSpace(institute.Timezone)
}

func (s *instituteService) sanitizeUpdate(updates *model.InstituteUpdate) {
	normalize := func(v **string, fn func(string) string) {
		if *v != nil {
			normalized := fn(**v)
			*v = &normalized
		}
	}
	normalize(&updates.Name, sanitizer.NormalizeName)
	normalize(&updates.Description, sanitizer.SanitizeText)
	normalize(&updates.Street, sanitizer.TrimAndNormalize)
	normalize(&updates.PostalCode, sanitizer.NormalizePostalCode)
	normalize(&updates.City, sanitizer.NormalizeCity)
	normalize(&updates.Country, sanitizer.NormalizeCountry)
	normalize(&updates.Phone, normalizePhone)
	normalize(&updates.Email, sanitizer.NormalizeEmail)
	normalize(&updates.WebsiteURL, sanitizer.NormalizeURL)
	normalize(&updates.ImageURL, sanitizer.NormalizeURL)
	normalize(&updates.Timezone, strings.TrimSpace)
	if updates.Amenities != nil {
		normalized := sanitizer.NormalizeAmenities(*updates.Amenities)
		updates.Amenities = &normalized
	}
}

func (s *instituteService) applyDefaultsForNewInstitute(institute *model.Institute, p *auth.Principal) {
	if p != nil {
		institute.OwnerID = p.UserID
	}
	if institute.Country == "" {
		if c := locale.InferCountryFromPhone(institute.Phone); c != nil {
			institute.Country = c.Code
		} else {
			institute.Country = "DE"
		}
	}
	if institute.Timezone == "" {
		institute.Timezone = locale.ResolveTimezone(institute.Country, institute.Phone)
	}
	if institute.Amenities == nil {
		institute.Amenities = []string{}
	}
	institute.IsActive = true
	institute.AverageRating = 0
	institute.ReviewCount = 0
}

func mergeInstituteUpdates(existing *model.Institute, updates *model.InstituteUpdate) *model.Institute {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Street != nil {
		merged.Street = *updates.Street
	}
	if updates.PostalCode != nil {
		merged.PostalCode = *updates.PostalCode
	}
	if updates.City != nil {
		merged.City = *updates.City
	}
	if updates.Country != nil {
		merged.Country = *updates.Country
	}
	if updates.Phone != nil {
		merged.Phone = *updates.Phone
	}
	if updates.Email != nil {
		merged.Email = *updates.Email
	}
	if updates.WebsiteURL != nil {
		merged.WebsiteURL = *updates.WebsiteURL
	}
	if updates.Latitude != nil {
		lat := *updates.Latitude
		merged.Latitude = &lat
	}
	if updates.Longitude != nil {
		lng := *updates.Longitude
		merged.Longitude = &lng
	}
	if updates.ImageURL != nil {
		merged.ImageURL = *updates.ImageURL
	}
	if updates.Amenities != nil {
		merged.Amenities = *updates.Amenities
	}
	if updates.Timezone != nil {
		merged.Timezone = *updates.Timezone
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}

func addressChanged(existing, merged *model.Institute) bool {
	return existing.Street != merged.Street ||
		existing.PostalCode != merged.PostalCode ||
		existing.City != merged.City ||
		existing.Country != merged.Country
}

func diffInstitute(existing, merged *model.Institute) *postgres.Changes {
	changes := &postgres.Changes{}
	setIf := func(column string, changed bool, value any) {
		if changed {
			changes.Set(column, value)
		}
	}

	setIf("name", merged.Name != existing.Name, merged.Name)
	setIf("description", merged.Description != existing.Description, merged.Description)
	setIf("street", merged.Street != existing.Street, merged.Street)
	setIf("postal_code", merged.PostalCode != existing.PostalCode, merged.PostalCode)
	setIf("city", merged.City != existing.City, merged.City)
	setIf("country", merged.Country != existing.Country, merged.Country)
	setIf("phone", merged.Phone != existing.Phone, merged.Phone)
	setIf("email", merged.Email != existing.Email, merged.Email)
	setIf("website_url", merged.WebsiteURL != existing.WebsiteURL, merged.WebsiteURL)
	setIf("latitude", !equalFloat(merged.Latitude, existing.Latitude), merged.Latitude)
	setIf("longitude", !equalFloat(merged.Longitude, existing.Longitude), merged.Longitude)
	setIf("image_url", merged.ImageURL != existing.ImageURL, merged.ImageURL)
	setIf("amenities", !slices.Equal(merged.Amenities, existing.Amenities), merged.Amenities)
	setIf("timezone", merged.Timezone != existing.Timezone, merged.Timezone)
	setIf("is_active", merged.IsActive != existing.IsActive, merged.IsActive)

	return changes
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// searchKey hashes the normalized search so equivalent queries share a
// cache entry.
func searchKey(search *model.InstituteSearch) string {
	f := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.5f", *v)
	}
	raw := strings.Join([]string{
		strings.ToLower(search.Query),
		strings.ToLower(search.City),
		search.Amenity,
		f(search.MinRating),
		f(search.Latitude),
		f(search.Longitude),
		f(search.RadiusKM),
		search.Sort,
		fmt.Sprint(search.Limit),
		fmt.Sprint(search.Offset),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return searchKeyPrefix + hex.EncodeToString(sum[:16])
}

// normalizePhone keeps unparsable input as-is so validation reports it.
func normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	if normalized := sanitizer.NormalizePhone(phone); normalized != "" {
		return normalized
	}
	return phone
}
