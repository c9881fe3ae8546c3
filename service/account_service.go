package service

import (
	"context"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"clubledger/events"
	"clubledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ProvisionRequest describes a new athlete account
type ProvisionRequest struct {
	Name       string
	Nickname   string
	Email      string
	Credential string
}

// AccountPolicy holds the provisioning rules
type AccountPolicy struct {
	// AllowedEmailDomain restricts provisioned emails; empty accepts any domain
	AllowedEmailDomain  string
	MinCredentialLength int
}

type accountService struct {
	uowFactory UnitOfWorkFactory
	hasher     PasswordHasher
	tokens     TokenIssuer
	retry      RetryPolicy
	policy     AccountPolicy
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, hasher PasswordHasher, tokens TokenIssuer, retry RetryPolicy, policy AccountPolicy) AccountService {
	if policy.MinCredentialLength < 1 {
		policy.MinCredentialLength = 6
	}
	policy.AllowedEmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(policy.AllowedEmailDomain), "@"))
	return &accountService{
		uowFactory: uowFactory,
		hasher:     hasher,
		tokens:     tokens,
		retry:      retry,
		policy:     policy,
	}
}

// ProvisionAccount creates an athlete account together with its credential.
// The holder must change the credential on first login.
func (s *accountService) ProvisionAccount(ctx context.Context, caller models.CallerIdentity, req ProvisionRequest) (*models.Account, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		return nil, newError(KindInvalidArgument, "name is required")
	}
	if req.Nickname == "" {
		return nil, newError(KindInvalidArgument, "nickname is required")
	}
	if err := s.validateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := s.validateCredential(req.Credential); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	var account *models.Account
	err = s.retry.Do(ctx, "provision_account", func() error {
		var err error
		account, err = s.provision(ctx, caller.AccountID, req, hash)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"accountID":     account.ID,
		"email":         account.Email,
		"provisionedBy": caller.AccountID,
	}).Info("Account provisioned")

	return account, nil
}

func (s *accountService) provision(ctx context.Context, adminID string, req ProvisionRequest, hash string) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.AccountRepository().GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, newError(KindInvalidArgument, "email %s is already registered", req.Email)
	}

	account := &models.Account{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		Nickname:             req.Nickname,
		Email:                req.Email,
		Roles:                []models.Role{models.RoleAthlete},
		Balance:              decimal.Zero,
		AvailableBalance:     decimal.Zero,
		MustChangeCredential: true,
	}
	if err := uow.AccountRepository().Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if err := uow.CredentialRepository().Create(ctx, account.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	uow.EventBus().Publish(events.AccountProvisionedEvent{
		AccountID:     account.ID,
		Email:         account.Email,
		ProvisionedBy: adminID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// Authenticate checks an email/credential pair and issues an access token
func (s *accountService) Authenticate(ctx context.Context, email, credential string) (*models.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || credential == "" {
		return nil, "", newError(KindUnauthenticated, "invalid email or credential")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, "", newError(KindUnauthenticated, "invalid email or credential")
	}

	hash, err := uow.CredentialRepository().GetHash(ctx, account.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get credential: %w", err)
	}
	if hash == "" || !s.hasher.Verify(hash, credential) {
		log.WithField("accountID", account.ID).Debug("Credential mismatch")
		return nil, "", newError(KindUnauthenticated, "invalid email or credential")
	}

	if err := uow.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	token, err := s.tokens.GenerateAccessToken(account.ID, account.Roles)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return account, token, nil
}

// ChangeCredential replaces the caller's credential and clears the first-login flag
func (s *accountService) ChangeCredential(ctx context.Context, caller models.CallerIdentity, current, next string) error {
	if err := requireAuthenticated(caller); err != nil {
		return err
	}
	if err := s.validateCredential(next); err != nil {
		return err
	}

	err := s.retry.Do(ctx, "change_credential", func() error {
		return s.changeCredential(ctx, caller.AccountID, current, next)
	})
	if err != nil {
		return err
	}

	log.WithField("accountID", caller.AccountID).Info("Credential changed")
	return nil
}

func (s *accountService) changeCredential(ctx context.Context, accountID, current, next string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	hash, err := uow.CredentialRepository().GetHash(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get credential: %w", err)
	}
	if hash == "" || !s.hasher.Verify(hash, current) {
		return newError(KindUnauthenticated, "current credential is incorrect")
	}

	nextHash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}
	if err := uow.CredentialRepository().UpdateHash(ctx, accountID, nextHash); err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if err := uow.AccountRepository().SetMustChangeCredential(ctx, accountID, false); err != nil {
		return fmt.Errorf("failed to clear credential flag: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetRole grants or revokes admin or super_admin. Only a super_admin may do
// this, and never to remove their own super_admin role.
func (s *accountService) SetRole(ctx context.Context, caller models.CallerIdentity, accountID string, role models.Role, granted bool) (*models.Account, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleSuperAdmin {
		return nil, newError(KindInvalidArgument, "role %q cannot be changed", role)
	}
	if !granted && role == models.RoleSuperAdmin && accountID == caller.AccountID {
		return nil, newError(KindPermissionDenied, "cannot remove your own super_admin role")
	}

	var account *models.Account
	err := s.retry.Do(ctx, "set_role", func() error {
		var err error
		account, err = s.setRole(ctx, accountID, role, granted)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"accountID": account.ID,
		"role":      role,
		"granted":   granted,
		"changedBy": caller.AccountID,
	}).Info("Account role changed")

	return account, nil
}

func (s *accountService) setRole(ctx context.Context, accountID string, role models.Role, granted bool) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, newError(KindNotFound, "account %s not found", accountID)
	}

	roles := slices.DeleteFunc(slices.Clone(account.Roles), func(r models.Role) bool { return r == role })
	if granted {
		roles = append(roles, role)
	}
	if err := uow.AccountRepository().SetRoles(ctx, account.ID, roles); err != nil {
		return nil, fmt.Errorf("failed to update roles: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	account.Roles = roles
	return account, nil
}

// GetAccount returns an account with its available balance
func (s *accountService) GetAccount(ctx context.Context, caller models.CallerIdentity, accountID string) (*models.Account, error) {
	if err := requireAccess(caller, accountID); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, newError(KindNotFound, "account %s not found", accountID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts, or only those holding role when it is set
func (s *accountService) ListAccounts(ctx context.Context, caller models.CallerIdentity, role models.Role) ([]*models.Account, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if role != "" && !role.IsValid() {
		return nil, newError(KindInvalidArgument, "unknown role %q", role)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := uow.AccountRepository().List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return accounts, nil
}

// ResolveCaller builds the identity of an authenticated account from its stored roles
func (s *accountService) ResolveCaller(ctx context.Context, accountID string) (models.CallerIdentity, error) {
	if accountID == "" {
		return models.CallerIdentity{}, newError(KindUnauthenticated, "authentication required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return models.CallerIdentity{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return models.CallerIdentity{}, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return models.CallerIdentity{}, newError(KindUnauthenticated, "account %s no longer exists", accountID)
	}

	if err := uow.Commit(); err != nil {
		return models.CallerIdentity{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return models.CallerFromAccount(account), nil
}

func (s *accountService) validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newError(KindInvalidArgument, "email %q is not valid", email)
	}
	if s.policy.AllowedEmailDomain != "" && !strings.HasSuffix(email, "@"+s.policy.AllowedEmailDomain) {
		return newError(KindInvalidArgument, "email must belong to the %s domain", s.policy.AllowedEmailDomain)
	}
	return nil
}

func (s *accountService) validateCredential(credential string) error {
	if utf8.RuneCountInString(credential) < s.policy.MinCredentialLength {
		return newError(KindInvalidArgument, "credential must have at least %d characters", s.policy.MinCredentialLength)
	}
	return nil
}
