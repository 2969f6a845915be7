package instance

import "os"

// GetID identifies the running process in logs. CLINICVAX_INSTANCE_ID wins over
// the platform-provided DYNO name.
func GetID() string {
	for _, key := range []string{"CLINICVAX_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
