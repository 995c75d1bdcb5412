package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

// GetID returns the process instance identifier. DYNO wins on the platform,
// then WORKER_ID, then the hostname.
func GetID() string {
	if id, ok := env.First("DYNO", "WORKER_ID"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
