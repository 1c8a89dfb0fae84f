package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const hashFieldUserID = "user_id"

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// SessionVerifier treats the credential as a session id and reads the owning
// user from the session:<id> hash written by the identity service.
type SessionVerifier struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewSessionVerifier(client redis.Cmdable, logger *zap.Logger) *SessionVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionVerifier{
		client: client,
		logger: logger.With(zap.String("component", "session_verifier")),
	}
}

func (v *SessionVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrInvalidCredential
	}

	userID, err := v.client.HGet(ctx, sessionKey(credential), hashFieldUserID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidCredential
		}
		v.logger.Error("failed to read session", zap.Error(err))
		return "", fmt.Errorf("read session: %w", err)
	}
	if userID == "" {
		return "", ErrInvalidCredential
	}
	return userID, nil
}
