package provideraccess

import (
	"context"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
)

// Gate answers "may this user talk to this provider"
type Gate struct {
	store *Store
}

// NewGate creates a new provider gate
func NewGate(store *Store) *Gate {
	return &Gate{store: store}
}

// CanAccess reports whether a user may use a provider. Admins always
// may. For everyone else an access record must exist with both flags
// set; a missing record means no access, not an error.
func (g *Gate) CanAccess(ctx context.Context, user *auth.User, provider string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}

	access, err := g.store.Get(ctx, user.ID, provider)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return access.Allowed(), nil
}
