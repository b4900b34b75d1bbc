package loreapi

import "time"

// parseTime accepts the RFC3339 timestamps the upstream archive emits for
// last_update fields.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
