package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity は署名付きトークンに含まれる認証済み呼び出し元のクレーム。
// ユーザーID・ロール等の情報をバックエンドサービスへ伝播するために使用する。
type Identity struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"userId"`
	// Role はユーザーに割り当てられたロール（admin / user）。
	Role string `json:"role"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// Lifetime はセッショントークンの有効期間。
// セッションストアのTTLと揃えている。
const Lifetime = time.Hour

// Sign はIdentityをHS256で署名したトークン文字列を生成する。
// 有効期限はLifetime（1時間）。
func Sign(secret string, identity Identity) (string, error) {
	identity.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(Lifetime)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "gatekeeper",
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, identity)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列の署名と有効期限を検証し、Identityを復元する。
// 検証に失敗した場合はエラーを返す。
func Verify(secret, tokenString string) (*Identity, error) {
	identity := &Identity{}
	t, err := jwt.ParseWithClaims(tokenString, identity, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !t.Valid {
		return nil, fmt.Errorf("トークンが無効です")
	}
	return identity, nil
}
