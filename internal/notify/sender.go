// Package notify delivers verification codes to account holders.
package notify

import (
	"context"

	"signup-verify/internal/account/domain"
)

// Sender delivers the account's current verification code to its email address.
type Sender interface {
	Send(ctx context.Context, account *domain.Account) error
}
