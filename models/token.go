package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, access token'ın içindeki veriler (payload).
//
// Token'ı harici backend imzalar (paylaşılan HS256 secret). Bu servis sadece
// doğrular; login/register akışı yoktur.
type TokenClaims struct {
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	Callsign    string     `json:"callsign"`
	Rank        string     `json:"rank"`
	Permissions Permission `json:"permissions"`
	jwt.RegisteredClaims
}

// DisplayName, callsign varsa onu, yoksa username'i döner.
func (c *TokenClaims) DisplayName() string {
	if c.Callsign != "" {
		return c.Callsign
	}
	return c.Username
}
