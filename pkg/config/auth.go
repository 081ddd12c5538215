package config

import "time"

// AuthConfig groups the auth collaborator's settings. Authentication itself
// is out of scope; the engine only needs these to validate and
// propagate the identity already established upstream.
type AuthConfig struct {
	TokenSecret     string
	CookieName      string
	CookieSecure    bool
	SessionTTL      time.Duration
	AllowedDomains  []string
	AllowedEmails   []string
	AdminEmails     []string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret:    getEnv("NE_AUTH_TOKEN_SECRET", ""),
		CookieName:     getEnv("NE_AUTH_COOKIE_NAME", "ne_session"),
		CookieSecure:   getEnvBool("NE_AUTH_COOKIE_SECURE", true),
		SessionTTL:     getEnvDuration("NE_AUTH_SESSION_TTL", 24*time.Hour),
		AllowedDomains: getEnvList("NE_AUTH_ALLOWED_DOMAINS", nil),
		AllowedEmails:  getEnvList("NE_AUTH_ALLOWED_EMAILS", nil),
		AdminEmails:    getEnvList("NE_AUTH_ADMIN_EMAILS", nil),
	}
}
