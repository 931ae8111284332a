package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/config"
	"fishmarket/internal/domain"
	"fishmarket/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	MinPasswordLength = 8
)

var (
	ErrInvalidCredentials = apperror.New(apperror.CodeUnauthenticated, "invalid email or password")
	ErrInvalidToken       = apperror.New(apperror.CodeUnauthenticated, "invalid token")
	ErrTokenExpired       = apperror.New(apperror.CodeUnauthenticated, "token has expired")
)

// RegisterInput is a sign-up request. Role must be seller or buyer.
type RegisterInput struct {
	Email       string
	Password    string
	Role        domain.Role
	PhoneNumber string
}

// UserService is the identity provider: sign-up, sign-in, sign-out, sessions and user administration
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetSession(ctx context.Context, userID uuid.UUID) (*domain.Session, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context, actor domain.Actor, role domain.Role, search string) ([]*domain.User, error)
	DeleteUser(ctx context.Context, actor domain.Actor, userID uuid.UUID) error
	EnsureAdmin(ctx context.Context, email, password string) error
	// PruneSessions deletes refresh tokens that expired before now.
	PruneSessions(ctx context.Context) (int64, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	Email  string      `json:"email"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwt              config.JWTConfig
	logger           *zap.Logger
	now              func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtConfig config.JWTConfig,
	logger *zap.Logger,
) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jwtConfig.AccessExpiry <= 0 {
		jwtConfig.AccessExpiry = 15
	}
	if jwtConfig.RefreshExpiry <= 0 {
		jwtConfig.RefreshExpiry = 7
	}
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwt:              jwtConfig,
		logger:           logger,
		now:              time.Now,
	}
}

// Register creates a new account with a hashed password and exactly one role
func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.New(apperror.CodeValidation, "a valid email is required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.New(apperror.CodeValidation, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if in.Role != domain.RoleSeller && in.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeValidation, "role must be seller or buyer")
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, translate(err, "failed to create user")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

// Login authenticates a user and returns JWT tokens
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, translate(err, "failed to find user")
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, apperror.Wrap(apperror.CodeInternal, err, "failed to generate access token")
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, translate(err, "failed to generate refresh token")
	}

	return accessToken, refreshToken, user, nil
}

// Logout invalidates the refresh token; an unknown token is already signed out
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return translate(err, "failed to revoke refresh token")
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", translate(err, "failed to find refresh token")
	}

	if s.now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", translate(err, "failed to find user")
	}

	newAccessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", apperror.Wrap(apperror.CodeInternal, err, "failed to generate access token")
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwt.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetSession reports the identity behind userID, or UNAUTHENTICATED if it no longer exists
func (s *userService) GetSession(ctx context.Context, userID uuid.UUID) (*domain.Session, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.CodeUnauthenticated, "session user no longer exists")
		}
		return nil, translate(err, "failed to load session")
	}
	return &domain.Session{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to get user")
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, actor domain.Actor, role domain.Role, search string) ([]*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.CodeUnauthorized, "admin role required")
	}
	if role != "" && !role.IsValid() {
		return nil, apperror.New(apperror.CodeValidation, "unknown role filter")
	}
	users, err := s.userRepo.List(ctx, role, search)
	if err != nil {
		return nil, translate(err, "failed to list users")
	}
	return users, nil
}

// DeleteUser removes an account; admins cannot delete themselves
func (s *userService) DeleteUser(ctx context.Context, actor domain.Actor, userID uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperror.New(apperror.CodeUnauthorized, "admin role required")
	}
	if actor.UserID == userID {
		return apperror.New(apperror.CodeValidation, "admins cannot delete their own account")
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return translate(err, "failed to delete user")
	}
	s.logger.Info("User deleted", zap.String("user_id", userID.String()), zap.String("by", actor.UserID.String()))
	return nil
}

// EnsureAdmin creates the configured administrator if no account with that email exists
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return translate(err, "failed to look up admin")
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
	}
	now := s.now().UTC()
	admin := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrUserAlreadyExists) {
		return translate(err, "failed to create admin")
	}
	s.logger.Info("Administrator account ensured", zap.String("email", email))
	return nil
}

func (s *userService) PruneSessions(ctx context.Context) (int64, error) {
	removed, err := s.refreshTokenRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, translate(err, "failed to prune sessions")
	}
	if removed > 0 {
		s.logger.Info("Expired sessions pruned", zap.Int64("count", removed))
	}
	return removed, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken signs user id, role and email into an HS256 token
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.AccessTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwt.Secret))
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	now := s.now().UTC()
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.jwt.RefreshTTL()),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}
