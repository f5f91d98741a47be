package payment

import "context"

// StatusApproved is the gateway settlement status that grants access.
const StatusApproved = "approved"

type PreferenceRequest struct {
	ExternalReference string
	Title             string
	AmountCents       int64
	Currency          string
	PayerEmail        string
}

type Preference struct {
	ID          string
	RedirectURL string
}

// GatewayPayment is the settlement state fetched from the gateway.
type GatewayPayment struct {
	ID                string
	Status            string
	ExternalReference string
}

// Gateway is the external payment provider. Implementations return Upstream
// errors when the provider is unreachable or rejects the call.
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}
