package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecas/approval-api/internal/dto"
	"github.com/ecas/approval-api/internal/models"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/storage"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateSignature(ctx context.Context, id, signatureURL string) error
	ListTeachers(ctx context.Context) ([]models.TeacherOption, error)
}

// artifactUploader is the storage collaborator.
type artifactUploader interface {
	UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error)
}

// AuthConfig defines configuration for token issuance.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService provides registration, login and profile use cases.
type AuthService struct {
	repo      authUserRepository
	uploader  artifactUploader
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, uploader artifactUploader, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 30 * 24 * time.Hour
	}
	return &AuthService{repo: repo, uploader: uploader, validator: validate, logger: logger, config: config}
}

// Register creates an account and signs the user in. The signature image is optional.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, signature *dto.Upload) (*models.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := validateProfile(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.Name),
		Role:         req.Role,
	}
	switch req.Role {
	case models.RoleStudent:
		user.StudentNumber = stringPtr(req.StudentNumber)
		user.Department = stringPtr(req.Department)
		user.ClassName = stringPtr(req.ClassName)
	case models.RoleTeacher:
		user.AssignedDepartment = stringPtr(req.AssignedDepartment)
		user.AssignedClass = stringPtr(req.AssignedClass)
	case models.RoleHOD:
		user.AssignedDepartment = stringPtr(req.AssignedDepartment)
	}

	if signature != nil && len(signature.Data) > 0 {
		url, err := s.uploader.UploadBytes(ctx, storage.FolderSignatures, signature.Filename, signature.Data)
		if err != nil {
			return nil, appErrors.Transient(err, "failed to store signature, please retry")
		}
		user.SignatureURL = &url
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return s.issue(user)
}

func validateProfile(req models.RegisterRequest) error {
	missing := func(field string) error {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is required for role %s", field, req.Role))
	}
	switch req.Role {
	case models.RoleStudent:
		if strings.TrimSpace(req.StudentNumber) == "" {
			return missing("studentId")
		}
		if strings.TrimSpace(req.Department) == "" {
			return missing("department")
		}
		if strings.TrimSpace(req.ClassName) == "" {
			return missing("class")
		}
	case models.RoleTeacher:
		if strings.TrimSpace(req.AssignedDepartment) == "" {
			return missing("assignedDepartment")
		}
		if strings.TrimSpace(req.AssignedClass) == "" {
			return missing("assignedClass")
		}
	case models.RoleHOD:
		if strings.TrimSpace(req.AssignedDepartment) == "" {
			return missing("assignedDepartment")
		}
	case models.RolePrincipal:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	return nil
}

// Login authenticates a user for the role selected on the login screen.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	if user.Role != req.Role {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials for the selected role")
	}

	return s.issue(user)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateSignature stores a new signature image for the user.
func (s *AuthService) UpdateSignature(ctx context.Context, userID string, signature dto.Upload) (*models.User, error) {
	if len(signature.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signature file is required")
	}
	url, err := s.uploader.UploadBytes(ctx, storage.FolderSignatures, signature.Filename, signature.Data)
	if err != nil {
		return nil, appErrors.Transient(err, "failed to store signature, please retry")
	}
	if err := s.repo.UpdateSignature(ctx, userID, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update signature")
	}
	return s.Me(ctx, userID)
}

// Teachers lists teacher accounts for the reviewer picker.
func (s *AuthService) Teachers(ctx context.Context) ([]models.TeacherOption, error) {
	teachers, err := s.repo.ListTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func stringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
