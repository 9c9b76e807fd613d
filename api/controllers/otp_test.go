package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/localdrop/internal/otp"
	"github.com/angelmondragon/localdrop/pkg/config"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/mailer"
	"github.com/angelmondragon/localdrop/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inboxMailer struct {
	mu   sync.Mutex
	last string
}

func (m *inboxMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = msg.Body
	return nil
}

func (m *inboxMailer) code(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code := regexp.MustCompile(`\b\d{6}\b`).FindString(m.last)
	require.NotEmpty(t, code, "no code in %q", m.last)
	return code
}

func newOTPService(t *testing.T, mail *inboxMailer) *otp.Service {
	t.Helper()
	svc, err := otp.NewService(otp.ServiceParams{
		Store:  otp.NewMemoryStore(time.Now),
		Mailer: mail,
		Config: config.OTPConfig{
			AllowedDomain: "gmail.com",
			TTL:           5 * time.Minute,
			MaxAttempts:   3,
			CodeLength:    6,
			Hash:          config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16},
		},
	})
	require.NoError(t, err)
	return svc
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorBody {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error
}

func TestOTPSendThenVerifyIsSingleUse(t *testing.T) {
	mail := &inboxMailer{}
	svc := newOTPService(t, mail)
	send := OTPSend(svc, nil)
	verify := OTPVerify(svc, nil)

	rec := post(send, "/api/otp/send", `{"email":"a@gmail.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := `{"email":"a@gmail.com","otp":"` + mail.code(t) + `"}`
	rec = post(verify, "/api/otp/verify", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data otpResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, env.Data.Success)

	rec = post(verify, "/api/otp/verify", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, pkgerrors.CodeNotFound, decodeError(t, rec).Code)
}

func TestOTPVerifyLocksAfterThreeMismatches(t *testing.T) {
	mail := &inboxMailer{}
	svc := newOTPService(t, mail)
	require.Equal(t, http.StatusOK, post(OTPSend(svc, nil), "/api/otp/send", `{"email":"b@gmail.com"}`).Code)
	code := mail.code(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	verify := OTPVerify(svc, nil)
	for i := 0; i < 3; i++ {
		rec := post(verify, "/api/otp/verify", `{"email":"b@gmail.com","otp":"`+wrong+`"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid OTP", decodeError(t, rec).Message)
	}
	rec := post(verify, "/api/otp/verify", `{"email":"b@gmail.com","otp":"`+code+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, pkgerrors.CodeTooManyAttempts, decodeError(t, rec).Code)
}

func TestOTPSendRejectsOtherDomains(t *testing.T) {
	svc := newOTPService(t, &inboxMailer{})
	rec := post(OTPSend(svc, nil), "/api/otp/send", `{"email":"a@yahoo.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOTPBodyValidation(t *testing.T) {
	svc := newOTPService(t, &inboxMailer{})

	rec := post(OTPSend(svc, nil), "/api/otp/send", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, pkgerrors.CodeValidation, apiErr.Code)
	assert.Equal(t, map[string]any{"email": "is required"}, apiErr.Details)

	rec = post(OTPVerify(svc, nil), "/api/otp/verify", `{"email":"a@gmail.com","otp":"12ab56"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(OTPSend(svc, nil), "/api/otp/send", `{"email":"a@gmail.com","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOTPWithoutService(t *testing.T) {
	rec := post(OTPSend(nil, nil), "/api/otp/send", `{"email":"a@gmail.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
