package utils

import (
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"

	"outreachly/config"
	"outreachly/models"
)

// InitStripe sets the API key once at boot
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// EnsureStripeCustomer returns the user's Stripe customer ID, creating the
// customer on first use.
func EnsureStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	if user.Name != "" {
		params.Name = stripe.String(user.Name)
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCreditCheckoutSession opens a Stripe Checkout session for a credit
// pack purchase.
func CreateCreditCheckoutSession(customerID string, plan *models.Plan, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	if plan.StripePriceID == "" {
		return nil, fmt.Errorf("plan %s has no stripe price configured", plan.Name)
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			"plan_name":     plan.Name,
			"email_credits": fmt.Sprintf("%d", plan.EmailCredits),
		},
	}

	return session.New(params)
}
