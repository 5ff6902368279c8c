package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when the token is invalid for any reason
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidAccessCode is returned when an access code is not four digits
	ErrInvalidAccessCode = errors.New("access code must be 4 digits")
)

var accessCodePattern = regexp.MustCompile(`^[0-9]{4}$`)

// Claims carried by a bearer token
type Claims struct {
	jwt.RegisteredClaims
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	DepartmentID string `json:"department_id"`
	Role         string `json:"role"`
}

// Service issues and verifies bearer tokens
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueToken signs an HS256 token for user
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID:       user.ID,
		Username:     user.Username,
		DepartmentID: user.DepartmentID,
		Role:         user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates a token and returns its claims
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidAccessCodeFormat reports whether code is exactly four digits
func ValidAccessCodeFormat(code string) bool {
	return accessCodePattern.MatchString(code)
}

// HashAccessCode hashes a department access code
func HashAccessCode(code string) (string, error) {
	if !ValidAccessCodeFormat(code) {
		return "", ErrInvalidAccessCode
	}
	return HashPassword(code)
}

// CheckAccessCode reports whether code is well formed and matches hash
func CheckAccessCode(hash, code string) bool {
	return ValidAccessCodeFormat(code) && CheckPassword(hash, code)
}
