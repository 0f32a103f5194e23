package interfaces

import (
	"context"

	"authd/internal/domain/models"
)

// ClientProvider resolves registered OAuth applications.
type ClientProvider interface {
	Client(ctx context.Context, clientID string) (*models.Client, error)
}
