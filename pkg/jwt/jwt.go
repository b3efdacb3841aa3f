package jwt

import (
	"errors"
	"time"

	"hackreg/backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds. Verification and reset tokens are single-purpose and
// must not be accepted as session tokens.
const (
	KindAuth   = "auth"
	KindVerify = "verify"
	KindReset  = "reset"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken creates a new session JWT for a given user ID.
func GenerateToken(userID uint) (string, error) {
	return sign(jwt.MapClaims{
		"sub":  userID,
		"kind": KindAuth,
		"exp":  time.Now().Add(time.Hour * 24 * 7).Unix(), // Token expires in 7 days
		"iat":  time.Now().Unix(),
	})
}

// GenerateVerificationToken creates an email verification JWT carrying
// the address to verify.
func GenerateVerificationToken(email string) (string, error) {
	return sign(jwt.MapClaims{
		"email": email,
		"kind":  KindVerify,
		"exp":   time.Now().Add(time.Hour * 24 * 30).Unix(),
		"iat":   time.Now().Unix(),
	})
}

// GenerateResetToken creates a short-lived password reset JWT.
func GenerateResetToken(userID uint) (string, error) {
	return sign(jwt.MapClaims{
		"sub":  userID,
		"kind": KindReset,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})
}

// ParseUserToken validates a token of the given kind and returns the
// user id it carries.
func ParseUserToken(tokenString, kind string) (uint, error) {
	claims, err := parse(tokenString, kind)
	if err != nil {
		return 0, err
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return uint(sub), nil
}

// ParseVerificationToken validates an email verification token and
// returns the email address it was issued for.
func ParseVerificationToken(tokenString string) (string, error) {
	claims, err := parse(tokenString, KindVerify)
	if err != nil {
		return "", err
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}

func sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func parse(tokenString, kind string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if k, _ := claims["kind"].(string); k != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
