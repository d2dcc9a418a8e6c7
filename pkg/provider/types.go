package provider

import (
	"context"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// CapabilityChat marks the organization that owns the chat quotas.
const CapabilityChat = "chat"

// Organization is one entry of the organizations listing.
type Organization struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the organization advertises c.
func (o Organization) HasCapability(c string) bool {
	for _, have := range o.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Client retrieves usage readings from the chat service.
type Client interface {
	// ResolveOrg returns the organization that owns the chat quotas.
	// Once an id is cached it is returned without a request.
	ResolveOrg(ctx context.Context) (string, error)

	// FetchUsage returns the current snapshot for orgID. It never retries.
	FetchUsage(ctx context.Context, orgID string) (usage.Snapshot, error)
}

// OrgCache persists the resolved organization id. An empty id means none
// is cached.
type OrgCache interface {
	OrgID(ctx context.Context) (string, error)
	SetOrgID(ctx context.Context, id string) error
}
