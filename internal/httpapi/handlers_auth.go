package httpapi

import (
	"net/http"
	"time"

	"github.com/suriekke/shopeasy2-sub000/internal/auth"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

type otpRequest struct {
	Phone string `json:"phone" validate:"required,max=16"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone" validate:"required,max=16"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func OTPRequest(svc *auth.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload otpRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		if err := svc.RequestCode(r.Context(), payload.Phone); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccessStatus(w, http.StatusAccepted, map[string]bool{"sent": true})
	}
}

func OTPVerify(svc *auth.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload otpVerifyRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		session, user, err := svc.VerifyCode(r.Context(), payload.Phone, payload.Code)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user})
	}
}

func Logout(svc *auth.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if err := svc.Logout(r.Context(), session.Token); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, map[string]bool{"logged_out": true})
	}
}
