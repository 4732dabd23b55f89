package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/mindmates/backend/apperrors"
)

const blacklistPrefix = "blacklist:"

// TokenService issues and validates the bearer tokens used by both the HTTP
// middleware and the websocket auth handshake. Logged-out tokens are held in
// a redis blacklist until they expire on their own.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
}

func NewTokenService(secret string, ttl time.Duration, rdb *redis.Client) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, redis: rdb}
}

func (s *TokenService) Generate(userID uint, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses the token, rejects blacklisted ones, and returns the
// principal's user id.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (uint, error) {
	if s.redis != nil {
		exists, err := s.redis.Exists(ctx, blacklistPrefix+tokenString).Result()
		if err == nil && exists > 0 {
			return 0, apperrors.Unauthorized("token is blacklisted")
		}
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}

	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, apperrors.Unauthorized("invalid token claims")
	}
	return uint(rawID), nil
}

// Blacklist marks a token unusable for the remainder of its lifetime.
func (s *TokenService) Blacklist(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return apperrors.Unauthorized("token has no expiry")
	}

	ttl := time.Until(time.Unix(int64(exp), 0))
	if ttl <= 0 {
		return nil
	}
	if s.redis == nil {
		return nil
	}
	return s.redis.Set(ctx, blacklistPrefix+tokenString, 1, ttl).Err()
}

func (s *TokenService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
