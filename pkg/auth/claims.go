package auth

import "github.com/golang-jwt/jwt/v5"

// PurposeEmailVerified marks tokens minted after a successful OTP check.
const PurposeEmailVerified = "email_verified"

// VerificationClaims is carried by the token returned from OTP verification and
// forwarded with the signup request as proof of email ownership.
type VerificationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}
