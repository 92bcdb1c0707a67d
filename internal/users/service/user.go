package service

import (
	"context"
	"errors"

	userserrors "freezefit/internal/users/errors"
	"freezefit/internal/users/repository"
	"freezefit/internal/users/validator"
	"freezefit/pkg/auth"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"
	"freezefit/pkg/events"
	"freezefit/pkg/model"
	"freezefit/pkg/sanitizer"
	"freezefit/pkg/validation"
)

// invalidCredentials is returned for unknown e-mails and wrong passwords
// alike.
const invalidCredentials = "Invalid email or password"

// LoyaltyEnroller opens the loyalty account of a new customer.
type LoyaltyEnroller interface {
	EnsureAccount(ctx context.Context, userID string) error
}

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
	Refresh(ctx context.Context, req *model.RefreshRequest) (*auth.TokenPair, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, updates *model.UserUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, id string, req *model.PasswordChange) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	tokens    *auth.TokenManager
	loyalty   LoyaltyEnroller
	publisher events.Publisher
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	tokens *auth.TokenManager,
	loyalty LoyaltyEnroller,
	publisher events.Publisher,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		loyalty:   loyalty,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Phone = normalizePhone(req.Phone)

	if err := s.validator.ValidateRegistration(req); err != nil {
		s.cfg.Log.Warn("Registration validation failed",
			"email", req.Email,
			"role", req.Role,
			"error", err,
		)
		return nil, validation.ToAppError("Registration", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to secure password", err)
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         req.Role,
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			if errors.Is(err, userserrors.ErrEmailTaken) {
				return apperrors.Conflict("An account with this email already exists")
			}
			return err
		}
		if user.Role == auth.RoleCustomer && s.loyalty != nil {
			if err := s.loyalty.EnsureAccount(txCtx, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to register user", "email", user.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TypeUserRegistered, user.ID, events.UserRegistered{
		User: events.Recipient{UserID: user.ID, Email: user.Email, Name: user.Name},
		Role: user.Role,
	})

	s.cfg.Log.Info("User registered successfully",
		"id", user.ID,
		"role", user.Role,
	)

	return &model.AuthResponse{User: user, Tokens: tokens}, nil
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, validation.ToAppError("Login", err)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			s.cfg.Log.Warn("Login for unknown email")
			return nil, apperrors.Unauthorized(invalidCredentials)
		}
		s.cfg.Log.Error("Failed to load user for login", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.cfg.Log.Warn("Login with wrong password", "user_id", user.ID)
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("User logged in", "id", user.ID)
	return &model.AuthResponse{User: user, Tokens: tokens}, nil
}

func (s *userService) Refresh(ctx context.Context, req *model.RefreshRequest) (*auth.TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, apperrors.InvalidInput("refresh_token is required")
	}

	claims, err := s.tokens.Parse(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	// The role is re-read so promotions and deletions take effect on refresh.
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.Unauthorized("Invalid or expired refresh token")
		}
		return nil, apperrors.Internal("Failed to refresh token", err)
	}

	return s.issue(user)
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to get user by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id string, updates *model.UserUpdate) (*model.User, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	merged := mergeUserUpdates(existing, updates)

	if err := s.validator.ValidateUser(merged); err != nil {
		s.cfg.Log.Warn("User validation failed", "id", id, "error", err)
		return nil, validation.ToAppError("User", err)
	}

	changes := diffUser(existing, merged)
	if changes.Len() == 0 {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		s.cfg.Log.Error("Failed to update user", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update user", err)
	}

	s.cfg.Log.Info("User updated successfully", "id", id, "fields", changes.Columns())
	return updated, nil
}

func (s *userService) ChangePassword(ctx context.Context, id string, req *model.PasswordChange) error {
	if err := s.validator.ValidatePasswordChange(req); err != nil {
		return validation.ToAppError("Password change", err)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		s.cfg.Log.Warn("Password change with wrong current password", "user_id", id)
		return apperrors.Unauthorized("Current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.Internal("Failed to secure password", err)
	}

	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		s.cfg.Log.Error("Failed to change password", "user_id", id, "error", err)
		return apperrors.Internal("Failed to change password", err)
	}

	s.cfg.Log.Info("Password changed", "user_id", id)
	return nil
}

func (s *userService) issue(user *model.User) (*auth.TokenPair, error) {
	tokens, err := s.tokens.Issue(auth.Subject{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		s.cfg.Log.Error("Failed to issue tokens", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to issue tokens", err)
	}
	return tokens, nil
}

func (s *userService) sanitizeUpdate(updates *model.UserUpdate) {
	if updates.Name != nil {
		normalized := sanitizer.NormalizeName(*updates.Name)
		updates.Name = &normalized
	}
	if updates.Phone != nil {
		normalized := normalizePhone(*updates.Phone)
		updates.Phone = &normalized
	}
	if updates.AvatarURL != nil {
		normalized := sanitizer.NormalizeURL(*updates.AvatarURL)
		updates.AvatarURL = &normalized
	}
}

func mergeUserUpdates(existing *model.User, updates *model.UserUpdate) *model.User {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.Phone != nil {
		merged.Phone = *updates.Phone
	}
	if updates.AvatarURL != nil {
		merged.AvatarURL = *updates.AvatarURL
	}

	return &merged
}

func diffUser(existing, merged *model.User) *postgres.Changes {
	changes := &postgres.Changes{}
	if merged.Name != existing.Name {
		changes.Set("name", merged.Name)
	}
	if merged.Phone != existing.Phone {
		changes.Set("phone", merged.Phone)
	}
	if merged.AvatarURL != existing.AvatarURL {
		changes.Set("avatar_url", merged.AvatarURL)
	}
	return changes
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
