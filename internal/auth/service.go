package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/accounts"
	"github.com/greengrocer/storefront/internal/cart"
	pkgAuth "github.com/greengrocer/storefront/pkg/auth"
	"github.com/greengrocer/storefront/pkg/auth/session"
	"github.com/greengrocer/storefront/pkg/config"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/outbox"
	"github.com/greengrocer/storefront/pkg/outbox/payloads"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type sessionManager interface {
	Open(ctx context.Context, accessID string, accountID uuid.UUID) error
	Revoke(ctx context.Context, accessID string) error
}

type cartMerger interface {
	MergeOnLogin(ctx context.Context, sessionID string, accountID uuid.UUID) (*cart.MergeResult, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	tx       txRunner
	accounts *accounts.Repository
	hasher   passwordHasher
	sessions sessionManager
	merger   cartMerger
	outbox   outboxPublisher
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	TxRunner       txRunner
	Accounts       *accounts.Repository
	Hasher         passwordHasher
	SessionManager sessionManager
	Merger         cartMerger
	Outbox         outboxPublisher
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts repository is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Merger == nil {
		return nil, fmt.Errorf("cart merger is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		tx:       params.TxRunner,
		accounts: params.Accounts,
		hasher:   params.Hasher,
		sessions: params.SessionManager,
		merger:   params.Merger,
		outbox:   params.Outbox,
		jwtCfg:   params.JWTConfig,
		logg:     params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if strings.Contains(username, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username cannot contain @")
	}
	if len(req.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.Account
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.accounts.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check account email")
		}
		if _, err := repo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check account username")
		}

		account, err := repo.Create(ctx, accounts.CreateAccountDTO{
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email or username already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
		}
		created = account

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountRegistered,
			AggregateType: enums.AggregateAccount,
			AggregateID:   account.ID,
			Actor:         &outbox.ActorRef{AccountID: account.ID},
			Data: payloads.AccountRegisteredEvent{
				AccountID: account.ID,
				Email:     account.Email,
				Username:  account.Username,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register account")
	}

	s.logg.Info(s.logg.WithAccountID(ctx, created.ID.String()), "account registered")
	return accounts.FromModel(created), nil
}

// Login verifies credentials, opens an access session and folds the guest
// cart into the account cart. A failed merge does not fail the login.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	account, err := s.authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithAccountID(ctx, account.ID.String())

	now := time.Now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	account.LastLoginAt = &now

	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		AccountID: account.ID,
		Username:  account.Username,
		JTI:       accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.sessions.Open(ctx, accessID, account.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store access session")
	}

	resp := &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()),
		Account:     accounts.FromModel(account),
	}
	if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
		merged, err := s.merger.MergeOnLogin(ctx, sessionID, account.ID)
		if err != nil {
			s.logg.Error(ctx, "cart merge failed during login", err)
		} else {
			resp.MergedLines = merged.Merged
		}
	}
	return resp, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "access session missing")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke access session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, identifier, password string) (*models.Account, error) {
	input := strings.TrimSpace(identifier)
	if input == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	var (
		account *models.Account
		err     error
	)
	if strings.Contains(input, "@") {
		account, err = s.accounts.FindByEmail(ctx, strings.ToLower(input))
	} else {
		account, err = s.accounts.FindByUsername(ctx, input)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return account, nil
}
