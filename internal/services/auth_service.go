package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"driftchat/config"
	"driftchat/internal/domain"
	"driftchat/internal/repository"
	drift_errors "driftchat/pkg/errors"
)

type AuthService struct {
	userRepo      repository.UserRepository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	AvatarURL string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
	User         domain.Profile `json:"user"`
}

type accessClaims struct {
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || len(in.Password) < 8 {
		return AuthResponse{}, drift_errors.ErrValidation
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return AuthResponse{}, drift_errors.ErrAlreadyExists
	} else if !errors.Is(err, drift_errors.ErrNotFound) {
		return AuthResponse{}, err
	}
	if _, err := s.userRepo.GetByUsername(ctx, in.Username); err == nil {
		return AuthResponse{}, drift_errors.ErrAlreadyExists
	} else if !errors.Is(err, drift_errors.ErrNotFound) {
		return AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}
	verifyToken, err := randomToken(32)
	if err != nil {
		return AuthResponse{}, err
	}

	u := &domain.User{
		ID:                uuid.New(),
		Username:          in.Username,
		Email:             in.Email,
		PasswordHash:      string(hash),
		AvatarURL:         in.AvatarURL,
		VerificationToken: toNullString(verifyToken),
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return AuthResponse{}, err
	}

	return s.issueTokens(*u)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, drift_errors.ErrNotFound) {
			return AuthResponse{}, drift_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return AuthResponse{}, drift_errors.ErrUnauthorized
	}
	return s.issueTokens(u)
}

// Refresh trades a valid refresh token for a fresh token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResponse, error) {
	userID, err := parseToken(refreshToken, s.refreshSecret)
	if err != nil {
		return AuthResponse{}, err
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, drift_errors.ErrNotFound) {
			return AuthResponse{}, drift_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}
	return s.issueTokens(u)
}

// ParseAccess validates an access token and returns the subject.
func (s *AuthService) ParseAccess(token string) (uuid.UUID, error) {
	return parseToken(token, s.accessSecret)
}

// ForgotPassword stores a one-hour reset token for the account and returns
// it for delivery. Unknown emails surface ErrNotFound; the handler answers
// the same either way so the endpoint does not reveal which accounts exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.SetResetToken(ctx, u.ID, token, time.Now().Add(time.Hour)); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return drift_errors.ErrValidation
	}
	u, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, drift_errors.ErrNotFound) {
			return drift_errors.ErrAuthExpired
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, u.ID, string(hash))
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	return s.userRepo.MarkVerified(ctx, u.ID)
}

func (s *AuthService) issueTokens(u domain.User) (AuthResponse, error) {
	access, err := signToken(u.ID, s.accessSecret, s.accessTTL)
	if err != nil {
		return AuthResponse{}, err
	}
	refresh, err := signToken(u.ID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         u.Profile(),
	}, nil
}

func signToken(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(token string, secret []byte) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, drift_errors.ErrUnauthorized
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, drift_errors.ErrAuthExpired
		}
		return uuid.Nil, drift_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, drift_errors.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, drift_errors.ErrUnauthorized
	}
	return userID, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
