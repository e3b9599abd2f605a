package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	"go.uber.org/zap"
)

// CardService manages a user's saved cards on the first gateway offering a
// card vault.
type CardService struct {
	registry *provider.Registry
	mappings repository.CustomerMappingRepository
	logger   *zap.Logger
}

func NewCardService(
	registry *provider.Registry,
	mappings repository.CustomerMappingRepository,
	logger *zap.Logger,
) *CardService {
	return &CardService{
		registry: registry,
		mappings: mappings,
		logger:   logger,
	}
}

func (s *CardService) ListCards(ctx context.Context, userID string) ([]entity.SavedCard, error) {
	gateway, vault, err := s.vault(ctx)
	if err != nil {
		return nil, err
	}
	mapping, err := s.mappings.GetByUserID(ctx, string(gateway.Name()), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer mapping: %w", err)
	}
	if mapping == nil {
		return []entity.SavedCard{}, nil
	}

	cards, err := vault.ListCards(ctx, mapping.ProviderCustomerID)
	if err != nil {
		return nil, domainerrors.ProviderFailure(string(gateway.Name()), err)
	}
	return cards, nil
}

// SaveCard vaults a tokenized card, creating the provider customer on first
// use.
func (s *CardService) SaveCard(ctx context.Context, customer provider.CustomerInfo, cardToken string, makeDefault bool) (*entity.SavedCard, error) {
	if cardToken == "" {
		return nil, domainerrors.Validation("card token is required")
	}
	gateway, vault, err := s.vault(ctx)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, gateway, vault, customer)
	if err != nil {
		return nil, err
	}

	card, err := vault.SaveCard(ctx, customerID, cardToken, makeDefault)
	if err != nil {
		s.logger.Error("Failed to save card",
			zap.String("user_id", customer.UserID),
			zap.String("provider", string(gateway.Name())),
			zap.Error(err))
		return nil, domainerrors.ProviderFailure(string(gateway.Name()), err)
	}
	s.logger.Info("Card saved",
		zap.String("user_id", customer.UserID),
		zap.String("card_id", card.ID),
		zap.String("last4", card.Last4))
	return card, nil
}

func (s *CardService) DeleteCard(ctx context.Context, userID, cardID string) error {
	gateway, vault, customerID, err := s.existingCustomer(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if err := vault.DeleteCard(ctx, customerID, cardID); err != nil {
		return s.vaultError(gateway, err)
	}
	s.logger.Info("Card deleted", zap.String("user_id", userID), zap.String("card_id", cardID))
	return nil
}

func (s *CardService) SetDefaultCard(ctx context.Context, userID, cardID string) error {
	gateway, vault, customerID, err := s.existingCustomer(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if err := vault.SetDefaultCard(ctx, customerID, cardID); err != nil {
		return s.vaultError(gateway, err)
	}
	return nil
}

// RequiresCVV reports whether saved-card charges must collect the CVV again.
func (s *CardService) RequiresCVV(ctx context.Context) (bool, error) {
	_, vault, err := s.vault(ctx)
	if err != nil {
		return false, err
	}
	return vault.RequiresCVVForSavedCard(), nil
}

func (s *CardService) vault(ctx context.Context) (provider.Gateway, provider.CardVault, error) {
	for _, g := range s.registry.Gateways() {
		vault, ok := provider.Vault(g)
		if ok && g.IsConfigured() && g.IsEnabled(ctx) {
			return g, vault, nil
		}
	}
	return nil, nil, domainerrors.FeatureUnsupported("payments", string(provider.FeatureSavedCards))
}

func (s *CardService) ensureCustomer(ctx context.Context, gateway provider.Gateway, vault provider.CardVault, customer provider.CustomerInfo) (string, error) {
	name := string(gateway.Name())
	mapping, err := s.mappings.GetByUserID(ctx, name, customer.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer mapping: %w", err)
	}
	if mapping != nil {
		return mapping.ProviderCustomerID, nil
	}

	customerID, err := vault.GetOrCreateCustomer(ctx, customer)
	if err != nil {
		return "", domainerrors.ProviderFailure(name, err)
	}
	if err := s.mappings.Create(ctx, &entity.CustomerMapping{
		Provider:           name,
		ProviderCustomerID: customerID,
		UserID:             customer.UserID,
		Email:              customer.Email,
	}); err != nil {
		return "", fmt.Errorf("failed to store customer mapping: %w", err)
	}
	return customerID, nil
}

// existingCustomer resolves the caller's vault customer. Users without one
// have no cards, so cardID is reported missing.
func (s *CardService) existingCustomer(ctx context.Context, userID, cardID string) (provider.Gateway, provider.CardVault, string, error) {
	gateway, vault, err := s.vault(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	mapping, err := s.mappings.GetByUserID(ctx, string(gateway.Name()), userID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load customer mapping: %w", err)
	}
	if mapping == nil {
		return nil, nil, "", domainerrors.CardNotFound(cardID)
	}
	return gateway, vault, mapping.ProviderCustomerID, nil
}

func (s *CardService) vaultError(gateway provider.Gateway, err error) error {
	var pe *domainerrors.PaymentError
	if errors.As(err, &pe) {
		return err
	}
	return domainerrors.ProviderFailure(string(gateway.Name()), err)
}
