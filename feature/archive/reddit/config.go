package reddit

// Config holds configuration for the Reddit API client.
type Config struct {
	// Subreddit is the root collection set: every submission in it is swept.
	Subreddit string `mapstructure:"subreddit" default:"churningmarketplace"`
	// ClientID is the OAuth application client ID.
	ClientID string `mapstructure:"client_id" default:""`
	// ClientSecret is the OAuth application client secret.
	ClientSecret string `mapstructure:"client_secret" default:""`
	// UserAgent identifies this client to the API, per Reddit's rules.
	UserAgent string `mapstructure:"user_agent" default:"odyssey-archiver/1.0"`
	// BaseURL is the API host. Overridable for tests.
	BaseURL string `mapstructure:"base_url" default:"https://oauth.reddit.com"`
	// TokenURL is the OAuth token endpoint. Overridable for tests.
	TokenURL string `mapstructure:"token_url" default:"https://www.reddit.com/api/v1/access_token"`
	// TimeoutSeconds bounds each HTTP call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
