package instance

import (
	"os"

	"github.com/greengrocer/storefront/pkg/env"
)

const defaultID = "storefront-0"

// GetID identifies this process in logs.
// STOREFRONT_INSTANCE_ID wins, then the container hostname.
func GetID() string {
	if id := env.First("STOREFRONT_INSTANCE_ID", "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
