package payment

// Gateway defines the interface for payment providers.
type Gateway interface {
	// CreatePaymentLink creates a checkout session for a plan purchase and
	// returns the URL the client is redirected to.
	CreatePaymentLink(accountID, planID, orderID string, priceCents int64) (string, error)
	// VerifySignature verifies a webhook signature (provider specific).
	VerifySignature(payload []byte, signature string) bool
}

// Transaction status constants reported by webhooks.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// MockGateway is a stand-in provider for development and tests. It issues
// checkout links that point at a fake pay page and accepts any signature.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) CreatePaymentLink(accountID, planID, orderID string, priceCents int64) (string, error) {
	return "https://pay.example.com/checkout?order_id=" + orderID + "&plan=" + planID, nil
}

func (g *MockGateway) VerifySignature(payload []byte, signature string) bool {
	return true
}
