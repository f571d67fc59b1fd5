package ledger

import "context"

// PaymentVerification is the payment collaborator's answer for an incoming
// on-chain transfer.
type PaymentVerification struct {
	Confirmed    bool
	AmountMicros int64
	Sender       string
}

// OutgoingPayment describes a withdrawal to broadcast.
type OutgoingPayment struct {
	AccountID     int64
	AmountMicros  int64
	WalletAddress string
}

// PaymentBroadcast is the payment collaborator's answer for an outgoing
// transfer.
type PaymentBroadcast struct {
	Confirmed   bool
	ExternalRef string
}

// PaymentGateway is the external payment network collaborator. The engine
// never calls it while holding a balance lock; deposits and withdrawals use
// the pending/compensating pattern instead.
//
//go:generate mockgen -destination=mocks/mock_gateway.go -source=gateway.go PaymentGateway
type PaymentGateway interface {
	VerifyIncomingPayment(ctx context.Context, txRef string) (PaymentVerification, error)
	BroadcastOutgoingPayment(ctx context.Context, out OutgoingPayment) (PaymentBroadcast, error)
}
