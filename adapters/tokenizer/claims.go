package tokenizer

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload shared by access and refresh tokens
type Claims struct {
	Username  string `json:"username"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}
