package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = fmt.Errorf("%w: token has expired", ErrInvalidToken)
)

// Claims 只携带用户 ID
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager 负责签发与校验 JWT
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager 创建 TokenManager，expiry 为 0 时使用 30 天
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// IssueToken 为用户签发令牌
func (m *TokenManager) IssueToken(userID int64) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken 校验令牌并返回用户 ID
func (m *TokenManager) ParseToken(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
