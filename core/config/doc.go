// Package config provides configuration management for the archiver.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Log: Logging level and format
//   - Database: Postgres connection details
//   - Storage: S3/MinIO credentials and bucket settings
//   - Reddit: API credentials, subreddit, and endpoints
//   - Snapshot: raw payload archive toggle and object prefix
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Reddit.Subreddit)
package config
