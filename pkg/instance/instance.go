package instance

import (
	"os"

	"github.com/angelmondragon/referralz-backend/pkg/env"
)

// GetID identifies this process in logs. REFERRALZ_INSTANCE_ID wins, then the
// platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("", "REFERRALZ_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
