package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/localdrop/pkg/auth"
	"github.com/angelmondragon/localdrop/pkg/config"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/mailer"
	"github.com/angelmondragon/localdrop/pkg/metrics"
	"github.com/angelmondragon/localdrop/pkg/security"
)

const (
	msgNotFound        = "OTP not found, please request a new code"
	msgExpired         = "OTP has expired, please request a new code"
	msgTooManyAttempts = "Too many attempts, please request a new code"
	msgMismatch        = "Invalid OTP"
	mailSubject        = "Your LocalDrop verification code"
)

// Mailer relays the passcode email.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// ServiceParams bundles the passcode service dependencies.
type ServiceParams struct {
	Store   Store
	Mailer  Mailer
	Config  config.OTPConfig
	JWT     config.JWTConfig
	Metrics *metrics.OTPMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service issues and checks single-use email passcodes.
type Service struct {
	store   Store
	mailer  Mailer
	cfg     config.OTPConfig
	jwtCfg  config.JWTConfig
	metrics *metrics.OTPMetrics
	logg    *logger.Logger
	now     func() time.Time

	// serializes read-modify-write of a record within this process
	verifyMu sync.Mutex
}

// Verification is returned after a successful check.
type Verification struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("otp store is required")
	}
	if p.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	cfg := p.Config
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	cfg.AllowedDomain = strings.ToLower(strings.TrimSpace(cfg.AllowedDomain))
	return &Service{
		store:   p.Store,
		mailer:  p.Mailer,
		cfg:     cfg,
		jwtCfg:  p.JWT,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     p.Now,
	}, nil
}

// Send generates a code for email, stores it hashed and mails it.
func (s *Service) Send(ctx context.Context, email string) error {
	email, err := s.normalize(email)
	if err != nil {
		s.metrics.Sent("rejected")
		return err
	}

	code, err := security.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashSecret(code, s.cfg.Hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}
	rec := Record{Hash: hash, CreatedAt: s.now().UTC()}
	// keep the record past its validity so a late verify reports expiry
	if err := s.store.Put(ctx, email, rec, 2*s.cfg.TTL); err != nil {
		s.metrics.Sent("error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}

	if err := s.mailer.Send(ctx, mailer.Message{
		To:      email,
		Subject: mailSubject,
		Body:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.cfg.TTL/time.Minute)),
	}); err != nil {
		if delErr := s.store.Delete(ctx, email); delErr != nil {
			s.logg.WarnErr(ctx, "otp.send.cleanup_failed", delErr)
		}
		s.metrics.Sent("error")
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send otp email")
	}

	s.metrics.Sent("ok")
	s.logg.Info(s.logg.WithField(ctx, "email", email), "otp.sent")
	return nil
}

// Verify checks code against the pending record. A match consumes the
// record; a mismatch counts against the attempt limit.
func (s *Service) Verify(ctx context.Context, email, code string) (*Verification, error) {
	email, err := s.normalize(email)
	if err != nil {
		s.metrics.Verified("rejected")
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		s.metrics.Verified("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp is required")
	}

	s.verifyMu.Lock()
	defer s.verifyMu.Unlock()

	rec, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			s.metrics.Verified("not_found")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	if s.now().Sub(rec.CreatedAt) > s.cfg.TTL {
		if err := s.store.Delete(ctx, email); err != nil {
			s.logg.WarnErr(ctx, "otp.verify.cleanup_failed", err)
		}
		s.metrics.Verified("expired")
		return nil, pkgerrors.New(pkgerrors.CodeExpired, msgExpired)
	}
	if rec.Attempts >= s.cfg.MaxAttempts {
		s.metrics.Verified("too_many_attempts")
		return nil, pkgerrors.New(pkgerrors.CodeTooManyAttempts, msgTooManyAttempts)
	}

	ok, err := security.VerifySecret(code, rec.Hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check otp")
	}
	if !ok {
		rec.Attempts++
		if err := s.store.Update(ctx, email, rec); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record otp attempt")
		}
		s.metrics.Verified("mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgMismatch)
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume otp")
	}
	s.metrics.Verified("ok")

	out := &Verification{Email: email}
	if s.jwtCfg.Secret != "" {
		token, err := auth.MintVerificationToken(s.jwtCfg, s.now(), email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint verification token")
		}
		out.Token = token
	}
	return out, nil
}

func (s *Service) normalize(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if s.cfg.AllowedDomain != "" && email[at+1:] != s.cfg.AllowedDomain {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("only %s addresses are supported", s.cfg.AllowedDomain))
	}
	return email, nil
}
