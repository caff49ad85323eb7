package models

// WindowKey builds the storage key for a client's rate-limit window.
func WindowKey(clientID string) string {
	return "ratelimit:window:" + clientID
}
