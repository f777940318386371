package email

import "context"

// Sender delivers transactional email for the workflow service.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, toName, resetURL string) error
}
