package config

import "os"

type OAuthApp struct {
	ClientID     string
	ClientSecret string
}

type FacebookApp struct {
	OAuthApp
	// DefaultPageID picks which managed page to connect when the user
	// manages more than one. Empty means first page returned.
	DefaultPageID string
}

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	Facebook        FacebookApp
	LinkedIn        OAuthApp
	Twitter         OAuthApp
	CallbackBaseURL string
	FrontendURL     string
	PostgresURI     string
	RedisURI        string
	GenerateAPIURL  string
	GenerateAPIKey  string
	R2              R2
	SecretKey       string
	VaultKey        string
	CookieName      string
}

func LoadConfig() *Config {
	return &Config{
		Facebook: FacebookApp{
			OAuthApp: OAuthApp{
				ClientID:     getEnv("FACEBOOK_APP_ID", ""),
				ClientSecret: getEnv("FACEBOOK_APP_SECRET", ""),
			},
			DefaultPageID: getEnv("FACEBOOK_DEFAULT_PAGE_ID", ""),
		},
		LinkedIn: OAuthApp{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		},
		Twitter: OAuthApp{
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		},
		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", "http://localhost:3000"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		RedisURI:        getEnv("REDIS_URI", ""),
		GenerateAPIURL:  getEnv("GENERATE_API_URL", ""),
		GenerateAPIKey:  getEnv("GENERATE_API_KEY", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		VaultKey:   getEnv("VAULT_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "pp_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
