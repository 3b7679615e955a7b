package notify

import (
	"context"

	domain "chesslessons/backend/internal/domain/auth"
	usecase "chesslessons/backend/internal/usecase/auth"

	"github.com/rs/zerolog"
)

// LogNotifier writes recovery tokens to the log instead of emailing them.
// Intended for development deployments without an SMTP relay.
type LogNotifier struct {
	log zerolog.Logger
}

var _ usecase.RecoveryNotifier = (*LogNotifier)(nil)

func NewLogNotifier(l zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

func (n *LogNotifier) DeliverRecovery(_ context.Context, user *domain.User, token string) error {
	n.log.Info().
		Str("email", user.Email).
		Str("recovery_token", token).
		Msg("[dev] password recovery token issued")
	return nil
}
