package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/audit"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/mail"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/storage"
)

// ServiceConfig wires the collaborators of the identity service
type ServiceConfig struct {
	DB       *sql.DB
	Tokens   *auth.TokenIssuer
	Hasher   *auth.CodeHasher
	Mailer   mail.Mailer
	MailFrom string
	// MailTimeout bounds the confirmation mail sent while the signup transaction is open
	MailTimeout time.Duration
	CodeTTL     time.Duration
	Checker     *rbac.Checker
	Audit       audit.Logger
	Metrics     *observability.Metrics
}

// Service implements signup, login and the user directory
type Service struct {
	db          *sql.DB
	store       *Store
	tokens      *auth.TokenIssuer
	hasher      *auth.CodeHasher
	mailer      mail.Mailer
	mailFrom    string
	mailTimeout time.Duration
	codeTTL     time.Duration
	checker     *rbac.Checker
	audit       audit.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewService creates the identity service
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		db:          cfg.DB,
		store:       NewStore(cfg.DB),
		tokens:      cfg.Tokens,
		hasher:      cfg.Hasher,
		mailer:      cfg.Mailer,
		mailFrom:    cfg.MailFrom,
		mailTimeout: cfg.MailTimeout,
		codeTTL:     cfg.CodeTTL,
		checker:     cfg.Checker,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
	if s.hasher == nil {
		s.hasher = auth.NewCodeHasher(0)
	}
	if s.mailTimeout <= 0 {
		s.mailTimeout = mail.DefaultSMTPTimeout
	}
	if s.checker == nil {
		s.checker = rbac.NewChecker(cfg.Metrics)
	}
	if s.audit == nil {
		s.audit = audit.NoopLogger{}
	}
	if s.metrics == nil {
		s.metrics = observability.NewNopMetrics()
	}
	return s
}

// Store exposes the underlying store, used by the sweeper and the auth middleware
func (s *Service) Store() *Store {
	return s.store
}

// LoadActor implements middleware.ActorLoader
func (s *Service) LoadActor(ctx context.Context, userID int64) (*auth.Actor, error) {
	return s.store.LoadActor(ctx, userID)
}

func (s *Service) record(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit event")
	}
}

// Register creates an unconfirmed user and mails a confirmation code. A repeat signup
// for the same username and email of a user who never logged in re-issues the code.
// Nothing is persisted when the mail cannot be sent.
func (s *Service) Register(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	if err := ValidateUsername(req.Username); err != nil {
		s.metrics.SignupsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := ValidateEmail(req.Email); err != nil {
		s.metrics.SignupsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	outcome := "created"
	err = storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		store := NewStore(q)

		user, err := store.GetByUsername(ctx, req.Username)
		switch {
		case err == nil:
			if user.Email != req.Email || user.LastLogin != nil {
				return apperrors.Validation("username", "a user with that username already exists")
			}
			if err := store.SetConfirmationCode(ctx, user.ID, hash, now); err != nil {
				return err
			}
			outcome = "reissued"
		case errors.Is(err, ErrUserNotFound):
			user = &User{
				Username:         req.Username,
				Email:            req.Email,
				Role:             auth.RoleUser,
				ConfirmationCode: hash,
				CodeIssuedAt:     &now,
				DateJoined:       now,
			}
			if err := store.Create(ctx, user); err != nil {
				return uniqueViolation(err)
			}
		default:
			return err
		}

		return s.sendCode(ctx, user, code)
	})
	if err != nil {
		status := "failed"
		if errors.Is(err, apperrors.ErrValidation) {
			status = "rejected"
		}
		s.metrics.SignupsTotal.WithLabelValues(status).Inc()
		return nil, err
	}

	s.metrics.SignupsTotal.WithLabelValues(outcome).Inc()
	s.record(ctx, audit.NewEvent(ctx, nil, audit.EventTypeAuthSignup, audit.EventStatusSuccess).
		On(audit.ResourceTypeUser, req.Username).
		With("outcome", outcome))

	return &SignupResponse{Email: req.Email, Username: req.Username}, nil
}

func (s *Service) sendCode(ctx context.Context, user *User, code string) error {
	msg := mail.Message{
		Subject: "Your confirmation code",
		Body: fmt.Sprintf("Hello %s,\n\nYour confirmation code is %s\n\nIt expires in %s.\n",
			user.Username, code, s.codeTTL),
		From: s.mailFrom,
		To:   []string{user.Email},
	}
	ctx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.MailErrors.Inc()
		return fmt.Errorf("failed to send confirmation code: %w", err)
	}
	return nil
}

// Authenticate exchanges a confirmation code for an access token. A code works once
// and only within the configured TTL.
func (s *Service) Authenticate(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Username == "" {
		return nil, apperrors.Validation("username", "this field is required")
	}
	if req.ConfirmationCode == "" {
		return nil, apperrors.Validation("confirmation_code", "this field is required")
	}
	if len(req.ConfirmationCode) > auth.CodeLength {
		return nil, tooLong("confirmation_code", auth.CodeLength)
	}

	user, err := s.store.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.LoginsTotal.WithLabelValues("unknown_user").Inc()
		}
		return nil, err
	}

	now := s.now().UTC()
	rejected := func(status string, eventType audit.EventType) error {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
		s.record(ctx, audit.NewEvent(ctx, user.Actor(), eventType, audit.EventStatusFailure).
			On(audit.ResourceTypeUser, user.Username).
			Describe(status))
		return invalidField("confirmation_code")
	}

	if user.ConfirmationCode == "" {
		return nil, rejected("consumed", audit.EventTypeAuthLoginFailed)
	}
	if s.codeTTL > 0 && (user.CodeIssuedAt == nil || now.Sub(*user.CodeIssuedAt) > s.codeTTL) {
		return nil, rejected("expired", audit.EventTypeAuthCodeExpired)
	}
	if !s.hasher.Matches(user.ConfirmationCode, req.ConfirmationCode) {
		return nil, rejected("mismatch", audit.EventTypeAuthLoginFailed)
	}

	ok, err := s.store.ConsumeCode(ctx, user.ID, user.ConfirmationCode, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rejected("consumed", audit.EventTypeAuthLoginFailed)
	}

	token, err := s.tokens.Issue(user.Actor())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.record(ctx, audit.NewEvent(ctx, user.Actor(), audit.EventTypeAuthLogin, audit.EventStatusSuccess).
		On(audit.ResourceTypeUser, user.Username))

	return &TokenResponse{Token: token}, nil
}

// GetSelf returns the actor's own record
func (s *Service) GetSelf(ctx context.Context, actor *auth.Actor) (*User, error) {
	if err := s.checker.CheckCollection(ctx, rbac.Authenticated{}, actor, http.MethodGet); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, actor.UserID)
}

// UpdateSelf patches the actor's own record. Actors without the staff or superuser
// flag always end up with the user role, whatever they sent and whatever they held.
func (s *Service) UpdateSelf(ctx context.Context, actor *auth.Actor, patch *Patch) (*User, error) {
	if err := s.checker.CheckCollection(ctx, rbac.Authenticated{}, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var before, updated *User
	err := storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		store := NewStore(q)
		var err error
		before, err = store.GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if err := store.Update(ctx, actor.UserID, patch); err != nil {
			return uniqueViolation(err)
		}
		if !actor.Elevated() {
			if err := store.SetRole(ctx, actor.UserID, auth.RoleUser); err != nil {
				return err
			}
		}
		updated, err = store.GetByID(ctx, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	requested := patch != nil && patch.Role != nil && *patch.Role != string(auth.RoleUser)
	if !actor.Elevated() && (before.Role != auth.RoleUser || requested) {
		s.record(ctx, audit.NewEvent(ctx, actor, audit.EventTypeAuthzRoleReset, audit.EventStatusSuccess).
			On(audit.ResourceTypeUser, updated.Username).
			With("previous_role", string(before.Role)))
	}
	return updated, nil
}

// AdminGet returns any user by username
func (s *Service) AdminGet(ctx context.Context, actor *auth.Actor, username string) (*User, error) {
	if err := s.checker.CheckCollection(ctx, rbac.UserAdmin{}, actor, http.MethodGet); err != nil {
		return nil, err
	}
	return s.store.GetByUsername(ctx, username)
}

// AdminUpdate patches any user, role included
func (s *Service) AdminUpdate(ctx context.Context, actor *auth.Actor, username string, patch *Patch) (*User, error) {
	if err := s.checker.CheckCollection(ctx, rbac.UserAdmin{}, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var updated *User
	err := storage.WithTx(ctx, s.db, func(q storage.Querier) error {
		store := NewStore(q)
		target, err := store.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if err := store.Update(ctx, target.ID, patch); err != nil {
			return uniqueViolation(err)
		}
		updated, err = store.GetByID(ctx, target.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewEvent(ctx, actor, audit.EventTypeAdminUserUpdate, audit.EventStatusSuccess).
		On(audit.ResourceTypeUser, updated.Username).
		With("previous_username", username))
	return updated, nil
}

// AdminReplace rejects full replacement of a user record for every caller
func (s *Service) AdminReplace(ctx context.Context, actor *auth.Actor, username string) error {
	return apperrors.Forbidden("")
}

// AdminDelete removes any user
func (s *Service) AdminDelete(ctx context.Context, actor *auth.Actor, username string) error {
	if err := s.checker.CheckCollection(ctx, rbac.UserAdmin{}, actor, http.MethodDelete); err != nil {
		return err
	}

	target, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, target.ID); err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, actor, audit.EventTypeAdminUserDelete, audit.EventStatusSuccess).
		On(audit.ResourceTypeUser, username))
	return nil
}

// List returns a page of the user directory
func (s *Service) List(ctx context.Context, actor *auth.Actor, filter ListFilter) ([]*User, int, error) {
	if err := s.checker.CheckCollection(ctx, rbac.AdminOnly{}, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, filter)
}

// AdminCreate creates a user directly. The user signs up with the same username and
// email to receive a confirmation code.
func (s *Service) AdminCreate(ctx context.Context, actor *auth.Actor, req CreateRequest) (*User, error) {
	if err := s.checker.CheckCollection(ctx, rbac.AdminOnly{}, actor, http.MethodPost); err != nil {
		return nil, err
	}
	role, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:   req.Username,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Bio:        req.Bio,
		Role:       role,
		DateJoined: s.now().UTC(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, uniqueViolation(err)
	}

	s.record(ctx, audit.NewEvent(ctx, actor, audit.EventTypeAdminUserCreate, audit.EventStatusSuccess).
		On(audit.ResourceTypeUser, user.Username).
		With("role", string(role)))
	return user, nil
}
