package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waifuhospital/internal/apperr"
	"waifuhospital/internal/client"
	"waifuhospital/internal/dto"
	"waifuhospital/internal/model"
	"waifuhospital/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenLifetime = 7 * 24 * time.Hour

type UserService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*model.User, error)
	StartOnboarding(ctx context.Context, userID string) (*dto.OnboardingLinkResponse, error)
	GetAccountStatus(ctx context.Context, userID string) (*dto.AccountStatusResponse, error)
}

type userServiceImpl struct {
	userRepo       repository.UserRepository
	paymentGateway client.PaymentGateway
	baseURL        string
	jwtSecret      []byte
}

func NewUserService(
	userRepo repository.UserRepository,
	paymentGateway client.PaymentGateway,
	baseURL string,
	jwtSecret string,
) UserService {
	return &userServiceImpl{
		userRepo:       userRepo,
		paymentGateway: paymentGateway,
		baseURL:        baseURL,
		jwtSecret:      []byte(jwtSecret),
	}
}

func (s *userServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		return nil, apperr.Validation("username, email and a password of at least 8 characters are required")
	}

	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("email already registered")
	}
	if _, err := s.userRepo.FindByUsername(ctx, req.Username); err == nil {
		return nil, apperr.Conflict("username already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &model.User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperr.Internal("store user", err)
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}

	return &dto.AuthResponse{Token: token, User: user}, nil
}

func (s *userServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	token, err := s.signToken(user.ID)
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}

	return &dto.AuthResponse{Token: token, User: user}, nil
}

func (s *userServiceImpl) signToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}
	return user, nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}

	if req.Username != nil && *req.Username != user.Username {
		if *req.Username == "" {
			return nil, apperr.Validation("username cannot be empty")
		}
		if _, err := s.userRepo.FindByUsername(ctx, *req.Username); err == nil {
			return nil, apperr.Conflict("username already taken")
		}
		user.Username = *req.Username
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = *req.ProfilePicture
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperr.Internal("update user", err)
	}
	return user, nil
}

// StartOnboarding creates the connected account on first use, then returns a
// fresh onboarding link. Links expire quickly, so one is minted per call.
func (s *userServiceImpl) StartOnboarding(ctx context.Context, userID string) (*dto.OnboardingLinkResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	accountID := user.StripeConnect.AccountID
	if accountID == "" {
		accountID, err = s.paymentGateway.CreateConnectedAccount(ctx, client.AccountProfile{
			UserID:   user.ID,
			Email:    user.Email,
			Username: user.Username,
			Country:  user.StripeConnect.Country,
		})
		if err != nil {
			return nil, apperr.External("stripe", err)
		}
		if err := s.userRepo.SetStripeAccountID(ctx, user.ID, accountID); err != nil {
			return nil, apperr.Internal("store connected account id", err)
		}
	}

	link, err := s.paymentGateway.CreateAccountLink(ctx, accountID,
		fmt.Sprintf("%s/creator/onboarding/refresh", s.baseURL),
		fmt.Sprintf("%s/creator/onboarding/complete", s.baseURL),
	)
	if err != nil {
		return nil, apperr.External("stripe", err)
	}

	return &dto.OnboardingLinkResponse{URL: link}, nil
}

// GetAccountStatus refreshes the cached onboarding flags from the gateway.
// The first refresh that sees a fully onboarded account stamps the
// completion time; later refreshes leave it alone.
func (s *userServiceImpl) GetAccountStatus(ctx context.Context, userID string) (*dto.AccountStatusResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	if user.StripeConnect.AccountID == "" {
		return &dto.AccountStatusResponse{}, nil
	}

	details, err := s.paymentGateway.GetAccountDetails(ctx, user.StripeConnect.AccountID)
	if err != nil {
		return nil, apperr.External("stripe", err)
	}

	var completedAt *time.Time
	if details.DetailsSubmitted && details.PayoutsEnabled && user.StripeConnect.OnboardingCompleted == nil {
		now := time.Now()
		completedAt = &now
	}
	if err := s.userRepo.UpdateOnboardingStatus(ctx, user.ID,
		details.DetailsSubmitted, details.PayoutsEnabled, completedAt); err != nil {
		return nil, apperr.Internal("update onboarding status", err)
	}

	return &dto.AccountStatusResponse{
		AccountID:      user.StripeConnect.AccountID,
		IsOnboarded:    details.DetailsSubmitted,
		PayoutsEnabled: details.PayoutsEnabled,
	}, nil
}
