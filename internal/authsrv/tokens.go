package authsrv

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンが不正・期限切れ・検証失敗であることを示す。
var ErrInvalidToken = errors.New("invalid token")

// tokenIssuerName はJWTのiss/audクレームに設定する識別子。
const tokenIssuerName = "hospital-web-hub-auth"

// accessClaims はアクセストークンのJWTクレーム。
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIssuer はHS256署名のアクセストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue はサブジェクトIDとメールアドレスからアクセストークンを発行する。
func (i *TokenIssuer) Issue(subjectID, email string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(i.ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    tokenIssuerName,
			Audience:  jwt.ClaimStrings{tokenIssuerName},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return token, expiresAt, err
}

// Validate はトークンの署名・有効期限・発行者を検証し、
// サブジェクトIDとメールアドレスを返す。
func (i *TokenIssuer) Validate(tokenString string) (subjectID, email string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != tokenIssuerName {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}
