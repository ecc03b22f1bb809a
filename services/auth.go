package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

const (
	maxOTPRequests    = 3
	otpRequestWindow  = 15 * time.Minute
	maxVerifyAttempts = 5
	otpDigits         = 6
)

type authStore interface {
	OTPRepository
	UserRepository
}

// invitationAcceptor is called for every newly created account.
type invitationAcceptor interface {
	AcceptInvitations(ctx context.Context, user models.User)
}

// AuthService implements passwordless login: a six digit code is emailed
// and exchanged for a session token.
type AuthService struct {
	store           authStore
	tokens          *utils.TokenManager
	notify          *NotificationService
	invitations     invitationAcceptor
	otpTTL          time.Duration
	defaultCurrency string
	log             *zap.Logger
	now             func() time.Time
	code            func() (string, error)
}

func NewAuthService(store authStore, tokens *utils.TokenManager, notify *NotificationService, invitations invitationAcceptor, otpTTL time.Duration, defaultCurrency string, log *zap.Logger) *AuthService {
	return &AuthService{
		store:           store,
		tokens:          tokens,
		notify:          notify,
		invitations:     invitations,
		otpTTL:          otpTTL,
		defaultCurrency: defaultCurrency,
		log:             log.Named("auth"),
		now:             time.Now,
		code:            randomCode,
	}
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// SendOTP emails a fresh login code.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)

	recent, err := s.store.CountOTPsSince(ctx, email, s.now().Add(-otpRequestWindow))
	if err != nil {
		return err
	}
	if recent >= maxOTPRequests {
		return utils.NewAppError(http.StatusTooManyRequests, utils.CodeOTPRateLimit,
			fmt.Sprintf("Too many OTP requests. Please try again in %d minutes.", int(otpRequestWindow.Minutes())))
	}

	code, err := s.code()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	if err := s.store.CreateOTP(ctx, &models.EmailOTP{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := s.notify.SendOTP(ctx, email, code, s.otpTTL); err != nil {
		s.log.Error("send otp email", zap.String("email", email), zap.Error(err))
		return utils.NewAppError(http.StatusInternalServerError, utils.CodeEmailSendFailed, "Failed to send OTP. Please try again.")
	}
	s.log.Info("otp sent", zap.String("email", email))
	return nil
}

// VerifyOTP checks the latest code for the email and returns a session,
// creating the account on first login.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*models.AuthResponse, error) {
	email = utils.NormalizeEmail(email)

	otp, err := s.store.LatestOTP(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeOTPNotFound, "No OTP found for this email")
	}
	if err != nil {
		return nil, err
	}
	if otp.Verified {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeOTPAlreadyUsed, "OTP already used")
	}
	if s.now().After(otp.ExpiresAt) {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeOTPExpired, "OTP has expired. Please request a new one.")
	}
	if otp.Attempts >= maxVerifyAttempts {
		return nil, utils.NewAppError(http.StatusTooManyRequests, utils.CodeOTPTooManyAttempts, "Too many verification attempts. Please request a new OTP.")
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		if err := s.store.UpdateOTP(ctx, otp.ID, map[string]interface{}{"attempts": otp.Attempts + 1}); err != nil {
			return nil, err
		}
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeInvalidOTP, "Invalid OTP")
	}
	if err := s.store.UpdateOTP(ctx, otp.ID, map[string]interface{}{"verified": true}); err != nil {
		return nil, err
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user.ToResponse()}, nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	name, _, _ := strings.Cut(email, "@")
	user = &models.User{Email: email, Name: name, Currency: s.defaultCurrency}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", zap.String("user_id", user.ID.String()))

	if s.invitations != nil {
		s.invitations.AcceptInvitations(ctx, *user)
	}
	return user, nil
}
