package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"edurumble-service/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	verifyCodeTTL     = time.Hour
	maxVerifyAttempts = 5
)

// SignUpRequest carries the fields of a new account.
type SignUpRequest struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	Fullname string `validate:"required"`
	Password string `validate:"min=6"`
}

var signUpMessages = map[string]string{
	"Username.required": "Username is required",
	"Email.required":    "Please enter a valid email address",
	"Email.email":       "Please enter a valid email address",
	"Fullname.required": "Name is required",
	"Password.min":      "Password must be at least 6 characters",
}

type verifyInput struct {
	Username string `validate:"required"`
	Code     string `validate:"required"`
}

var verifyMessages = map[string]string{
	"Username.required": "Username is required",
	"Code.required":     "Verification code is required",
}

type loginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

var loginMessages = map[string]string{
	"Email.required":    "Email and password are required",
	"Password.required": "Email and password are required",
}

// LoginResult is a signed session token and the account it belongs to.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// AuthService handles credentials-based accounts.
type AuthService struct {
	users          UserStore
	ledger         CreditLedger
	tokens         TokenIssuer
	events         EventPublisher
	defaultCredits int
	now            func() time.Time
	verifyCode     func() (string, error)
}

func NewAuthService(users UserStore, ledger CreditLedger, tokens TokenIssuer, events EventPublisher, defaultCredits int) *AuthService {
	if events == nil {
		events = nopPublisher{}
	}
	return &AuthService{
		users:          users,
		ledger:         ledger,
		tokens:         tokens,
		events:         events,
		defaultCredits: defaultCredits,
		now:            time.Now,
		verifyCode:     randomVerifyCode,
	}
}

// SignUp creates an unverified account and publishes its verification code.
// Signing up again with the username and email of an unverified account issues a fresh code.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (domain.User, error) {
	req = SignUpRequest{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Fullname: strings.TrimSpace(req.Fullname),
		Password: req.Password,
	}
	if err := validateStruct(req, signUpMessages); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	code, err := s.verifyCode()
	if err != nil {
		return domain.User{}, fmt.Errorf("verify code: %w", err)
	}

	now := s.now()
	user, err := s.users.CreateUser(ctx, domain.User{
		Username:         req.Username,
		Email:            req.Email,
		Fullname:         req.Fullname,
		PasswordHash:     string(hash),
		Credits:          s.defaultCredits,
		VerifyCode:       code,
		IsVerified:       false,
		VerifyCodeExpiry: now.Add(verifyCodeTTL),
		AttemptedQuizzes: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if errors.Is(err, domain.ErrConflict) {
		user, err = s.reissue(ctx, req, string(hash), code, now.Add(verifyCodeTTL))
	}
	if err != nil {
		return domain.User{}, err
	}

	log.WithField("user_id", user.ID).Info("user registered")
	if err := s.events.Publish(ctx, domain.Event{
		Type:       domain.EventUserRegistered,
		UserID:     user.ID,
		Payload:    map[string]any{"username": user.Username, "email": user.Email, "verifyCode": code},
		OccurredAt: now,
	}); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("publish user.registered")
	}
	return user, nil
}

func (s *AuthService) reissue(ctx context.Context, req SignUpRequest, hash, code string, expiry time.Time) (domain.User, error) {
	existing, err := s.users.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrConflict
	}
	if err != nil {
		return domain.User{}, err
	}
	if existing.IsVerified || existing.Email != req.Email {
		return domain.User{}, domain.ErrConflict
	}
	return s.users.ResetVerification(ctx, existing.ID, hash, code, expiry)
}

// Verify marks an account verified when the code matches and has not expired.
// Each account gets maxVerifyAttempts tries per issued code.
func (s *AuthService) Verify(ctx context.Context, username, code string) error {
	in := verifyInput{Username: strings.TrimSpace(username), Code: strings.TrimSpace(code)}
	if err := validateStruct(in, verifyMessages); err != nil {
		return err
	}
	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}
	ok, err := s.users.TakeVerifyAttempt(ctx, user.ID, maxVerifyAttempts)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError("Too many incorrect attempts, please sign up again")
	}
	if user.VerifyCode == "" || subtle.ConstantTimeCompare([]byte(in.Code), []byte(user.VerifyCode)) != 1 {
		return domain.NewValidationError("Incorrect verification code")
	}
	if s.now().After(user.VerifyCodeExpiry) {
		return domain.NewValidationError("Verification code has expired, please sign up again")
	}
	return s.users.MarkVerified(ctx, user.ID)
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	in := loginInput{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := validateStruct(in, loginMessages); err != nil {
		return LoginResult{}, err
	}
	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return LoginResult{}, fmt.Errorf("no user found with this email: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, fmt.Errorf("invalid password: %w", domain.ErrUnauthorized)
	}
	if !user.IsVerified {
		return LoginResult{}, fmt.Errorf("please verify your email before logging in: %w", domain.ErrForbidden)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Me returns the caller's account with the current balance.
func (s *AuthService) Me(ctx context.Context, caller *domain.Identity) (domain.User, error) {
	if caller == nil || caller.ID == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	return s.users.GetUser(ctx, caller.ID)
}

// CreditHistory lists the caller's ledger entries, newest first.
func (s *AuthService) CreditHistory(ctx context.Context, caller *domain.Identity, limit int) ([]domain.CreditEntry, error) {
	if caller == nil || caller.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if s.ledger == nil {
		return []domain.CreditEntry{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.ledger.History(ctx, caller.ID, limit)
}

func randomVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
