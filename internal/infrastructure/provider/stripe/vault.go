package stripe

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/order-payments/internal/domain/entity"
	domainerrors "github.com/wekeepgrowing/order-payments/internal/domain/errors"
	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"go.uber.org/zap"
)

// GetOrCreateCustomer creates a Stripe customer for the user. Callers keep
// the returned id in the customer mapping table; this method does not
// look it up.
func (g *Gateway) GetOrCreateCustomer(ctx context.Context, customer provider.CustomerInfo) (string, error) {
	params := &stripe.CustomerParams{}
	if customer.Email != "" {
		params.Email = stripe.String(customer.Email)
	}
	if customer.Name != "" {
		params.Name = stripe.String(customer.Name)
	}
	params.Context = ctx
	params.AddMetadata("user_id", customer.UserID)
	params.SetIdempotencyKey("customer-" + customer.UserID)

	c, err := g.sc.Customers.New(params)
	if err != nil {
		g.logger.Error("Failed to create Stripe customer", zap.String("user_id", customer.UserID), zap.Error(err))
		return "", domainerrors.ProviderFailure(string(g.Name()), err)
	}
	return c.ID, nil
}

func (g *Gateway) SaveCard(ctx context.Context, customerID, cardToken string, makeDefault bool) (*entity.SavedCard, error) {
	if cardToken == "" {
		return nil, domainerrors.Validation("card token is required")
	}

	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	pm, err := g.sc.PaymentMethods.Attach(cardToken, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return nil, domainerrors.Validation("%s", g.TranslateError(err))
		}
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}

	if makeDefault {
		if err := g.setDefault(ctx, customerID, pm.ID); err != nil {
			return nil, err
		}
	}

	card := toSavedCard(pm)
	card.IsDefault = makeDefault
	return card, nil
}

func (g *Gateway) DeleteCard(ctx context.Context, customerID, cardID string) error {
	if _, err := g.ownedCard(ctx, customerID, cardID); err != nil {
		return err
	}

	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := g.sc.PaymentMethods.Detach(cardID, params); err != nil {
		return domainerrors.ProviderFailure(string(g.Name()), err)
	}
	return nil
}

func (g *Gateway) ListCards(ctx context.Context, customerID string) ([]entity.SavedCard, error) {
	defaultID, err := g.defaultCardID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	cards := []entity.SavedCard{}
	iter := g.sc.PaymentMethods.List(params)
	for iter.Next() {
		card := toSavedCard(iter.PaymentMethod())
		card.IsDefault = card.ID == defaultID
		cards = append(cards, *card)
	}
	if err := iter.Err(); err != nil {
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}
	return cards, nil
}

func (g *Gateway) SetDefaultCard(ctx context.Context, customerID, cardID string) error {
	if _, err := g.ownedCard(ctx, customerID, cardID); err != nil {
		return err
	}
	return g.setDefault(ctx, customerID, cardID)
}

// ChargeWithSavedCard confirms an intent on-session against a stored card.
func (g *Gateway) ChargeWithSavedCard(ctx context.Context, customerID, cardID string, order *entity.Order, amount decimal.Decimal, data *provider.PaymentData) (*provider.PaymentResult, error) {
	if _, err := g.ownedCard(ctx, customerID, cardID); err != nil {
		return nil, err
	}

	params := g.intentParams(ctx, order, amount, data)
	params.Customer = stripe.String(customerID)
	params.PaymentMethod = stripe.String(cardID)
	params.Confirm = stripe.Bool(true)
	params.AddMetadata(metadataConfirmation, confirmationServer)
	return g.createIntent(params, order)
}

// RequiresCVVForSavedCard is false: Stripe re-authenticates through 3DS
// (requires_action) instead of asking for the CVC again.
func (g *Gateway) RequiresCVVForSavedCard() bool {
	return false
}

func (g *Gateway) ownedCard(ctx context.Context, customerID, cardID string) (*stripe.PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := g.sc.PaymentMethods.Get(cardID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
			return nil, domainerrors.CardNotFound(cardID)
		}
		return nil, domainerrors.ProviderFailure(string(g.Name()), err)
	}
	if pm.Customer == nil || pm.Customer.ID != customerID {
		return nil, domainerrors.CardNotFound(cardID)
	}
	return pm, nil
}

func (g *Gateway) setDefault(ctx context.Context, customerID, cardID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(cardID),
		},
	}
	params.Context = ctx
	if _, err := g.sc.Customers.Update(customerID, params); err != nil {
		return domainerrors.ProviderFailure(string(g.Name()), err)
	}
	return nil
}

func (g *Gateway) defaultCardID(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := g.sc.Customers.Get(customerID, params)
	if err != nil {
		return "", domainerrors.ProviderFailure(string(g.Name()), err)
	}
	if c.InvoiceSettings != nil && c.InvoiceSettings.DefaultPaymentMethod != nil {
		return c.InvoiceSettings.DefaultPaymentMethod.ID, nil
	}
	return "", nil
}

func toSavedCard(pm *stripe.PaymentMethod) *entity.SavedCard {
	card := &entity.SavedCard{ID: pm.ID}
	if pm.Card != nil {
		card.Brand = string(pm.Card.Brand)
		card.Last4 = pm.Card.Last4
		card.ExpMonth = pm.Card.ExpMonth
		card.ExpYear = pm.Card.ExpYear
	}
	return card
}
