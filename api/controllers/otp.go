package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/localdrop/api/responses"
	"github.com/angelmondragon/localdrop/api/validators"
	"github.com/angelmondragon/localdrop/internal/otp"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

// OTPService is the passcode surface the HTTP layer needs.
type OTPService interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) (*otp.Verification, error)
}

type otpSendRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,numeric,max=12"`
}

type otpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// OTPSend issues a fresh code for the posted email.
func OTPSend(svc OTPService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable"))
			return
		}

		var body otpSendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Send(r.Context(), body.Email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, otpResult{Success: true, Message: "OTP sent"})
	}
}

// OTPVerify checks a code; a match consumes it.
func OTPVerify(svc OTPService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable"))
			return
		}

		var body otpVerifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verified, err := svc.Verify(r.Context(), body.Email, body.OTP)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, otpResult{Success: true, Message: "OTP verified", Token: verified.Token})
	}
}
