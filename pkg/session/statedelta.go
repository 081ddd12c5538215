package session

import "strings"

const (
	prefixTemp = "temp:"
	prefixUser = "user:"
	prefixApp  = "app:"
)

// routedDelta is a state_delta split by destination, with each key's routing
// prefix stripped.
type routedDelta struct {
	temp, user, app, thread map[string]any
}

// routeStateDelta splits a flat state_delta map into its four destinations
// per routing table. Thread-scoped (unprefixed) keys land in thread.
func routeStateDelta(delta map[string]any) routedDelta {
	r := routedDelta{temp: map[string]any{}, user: map[string]any{}, app: map[string]any{}, thread: map[string]any{}}
	for k, v := range delta {
		switch {
		case strings.HasPrefix(k, prefixTemp):
			r.temp[strings.TrimPrefix(k, prefixTemp)] = v
		case strings.HasPrefix(k, prefixUser):
			r.user[strings.TrimPrefix(k, prefixUser)] = v
		case strings.HasPrefix(k, prefixApp):
			r.app[strings.TrimPrefix(k, prefixApp)] = v
		default:
			r.thread[k] = v
		}
	}
	return r
}
