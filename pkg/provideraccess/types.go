// Package provideraccess gates which upstream agent providers each user
// may talk to. A user needs an access record that both grants access and
// is active; admins bypass the gate entirely.
package provideraccess

import "time"

// Providers known to the relay
const (
	ProviderAWS = "aws"
	ProviderGCP = "gcp"
)

// Access records one user's standing for one provider
type Access struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Provider  string    `json:"provider"`
	HasAccess bool      `json:"has_access"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Allowed reports whether this record grants usable access
func (a *Access) Allowed() bool {
	return a.HasAccess && a.IsActive
}
