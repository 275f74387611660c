package config

import "time"

// SSOAuthConfig configures the HTTP server, token TTLs, and the OAuth2
// collaborators the ssoauthd composition root wires up.
type SSOAuthConfig struct {
	Port        string
	CORSOrigins string

	AccessTokenTTL               time.Duration
	RefreshTokenTTL               time.Duration
	ResetPasswordTokenTTL         time.Duration
	UpdateEmailRevokeTokenTTL     time.Duration
	UpdatePasswordRevokeTokenTTL  time.Duration

	RootKeyValue string

	GithubClientID     string
	GithubClientSecret string
	GithubRedirectURL  string

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftRedirectURL  string
	MicrosoftTenantID     string
}

func loadSSOAuthConfig() SSOAuthConfig {
	return SSOAuthConfig{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		AccessTokenTTL:               getEnvDuration("SSOAUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:              getEnvDuration("SSOAUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetPasswordTokenTTL:        getEnvDuration("SSOAUTH_RESET_PASSWORD_TOKEN_TTL", time.Hour),
		UpdateEmailRevokeTokenTTL:    getEnvDuration("SSOAUTH_UPDATE_EMAIL_REVOKE_TOKEN_TTL", 7*24*time.Hour),
		UpdatePasswordRevokeTokenTTL: getEnvDuration("SSOAUTH_UPDATE_PASSWORD_REVOKE_TOKEN_TTL", 7*24*time.Hour),

		RootKeyValue: getEnv("SSOAUTH_ROOT_KEY", ""),

		GithubClientID:     getEnv("SSOAUTH_GITHUB_CLIENT_ID", ""),
		GithubClientSecret: getEnv("SSOAUTH_GITHUB_CLIENT_SECRET", ""),
		GithubRedirectURL:  getEnv("SSOAUTH_GITHUB_REDIRECT_URL", ""),

		MicrosoftClientID:     getEnv("SSOAUTH_MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("SSOAUTH_MICROSOFT_CLIENT_SECRET", ""),
		MicrosoftRedirectURL:  getEnv("SSOAUTH_MICROSOFT_REDIRECT_URL", ""),
		MicrosoftTenantID:     getEnv("SSOAUTH_MICROSOFT_TENANT_ID", ""),
	}
}
