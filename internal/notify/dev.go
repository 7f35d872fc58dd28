package notify

import (
	"context"
	"errors"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/devcode"
	"signup-verify/internal/logging"
)

// DevSender records the code in a devcode.Store instead of sending email.
type DevSender struct {
	store devcode.Store
	log   logging.Logger
}

func NewDevSender(store devcode.Store, log logging.Logger) *DevSender {
	return &DevSender{store: store, log: log}
}

func (s *DevSender) Send(ctx context.Context, account *domain.Account) error {
	if account == nil || !domain.IsCode(account.VerificationCode) {
		return errors.New("notify: account has no verification code")
	}
	s.store.Put(ctx, account.ID, account.VerificationCode)
	s.log.Info(ctx, "verification code stored for dev lookup",
		"account_id", account.ID, "path", "/dev/verification-code/"+account.ID)
	return nil
}
