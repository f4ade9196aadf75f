package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"tradejournal/pkg/contracts/domain"
)

// AccountService fronts the account store with a short-lived cache so
// the import flow's repeated account lookups stay off the database.
type AccountService struct {
	store  AccountStore
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewAccountService creates the service with the given cache TTL.
func NewAccountService(store AccountStore, cacheTTL time.Duration, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		store:  store,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger.With(slog.String("component", "account_service")),
	}
}

// Create validates and persists a new account for the user.
func (s *AccountService) Create(ctx context.Context, userID, name, currency string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("account name must not be empty")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return domain.Account{}, fmt.Errorf("currency must be a 3-letter code, got %q", currency)
	}

	account := domain.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Currency:  currency,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}
	s.cache.Delete(listKey(userID))

	s.logger.InfoContext(ctx, "account created",
		slog.String("account_id", account.ID),
		slog.String("name", name))
	return account, nil
}

// Get loads one account, consulting the cache first.
func (s *AccountService) Get(ctx context.Context, id string) (domain.Account, error) {
	if cached, ok := s.cache.Get(accountKey(id)); ok {
		return cached.(domain.Account), nil
	}
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return domain.Account{}, err
	}
	s.cache.SetDefault(accountKey(id), account)
	return account, nil
}

// List returns the user's accounts, cached per user.
func (s *AccountService) List(ctx context.Context, userID string) ([]domain.Account, error) {
	if cached, ok := s.cache.Get(listKey(userID)); ok {
		return cached.([]domain.Account), nil
	}
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(listKey(userID), accounts)
	return accounts, nil
}

// GetAccount satisfies the AccountStore lookup the import service uses
// for destination validation, sharing this service's cache.
func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.Get(ctx, id)
}

// CreateAccount passes through to the store, invalidating the cache.
func (s *AccountService) CreateAccount(ctx context.Context, account domain.Account) error {
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return err
	}
	s.cache.Delete(listKey(account.UserID))
	return nil
}

// ListAccounts satisfies AccountStore via the cached List.
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	return s.List(ctx, userID)
}

func accountKey(id string) string  { return "account:" + id }
func listKey(userID string) string { return "accounts:" + userID }
