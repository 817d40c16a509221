// Package logger provides structured logging for vidfetch.
//
// Features:
//   - Levels TRACE, DEBUG, INFO, WARN, ERROR
//   - Component-based filtering
//   - Text, JSON and color output
//   - Safe for concurrent use
//   - Configuration from JSON files or VIDFETCH_LOG_* environment variables
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentCache)
//	log.Warn("store write failed", map[string]interface{}{
//		"key": "site/app_user_token",
//		"err": err,
//	})
//
//	config := logger.DefaultConfig()
//	config.Level = logger.DEBUG
//	config.Format = logger.FormatJSON
//	logger.SetGlobalLogger(logger.New(config))
//
// Components:
//   - ComponentApp: CLI and facade
//   - ComponentCache: namespaced TTL cache client
//   - ComponentStore: key-value store backends
//   - ComponentClient: HTTP request helpers
//   - ComponentService: info/download API client
//   - ComponentAttribution: utm/ref capture
//   - ComponentDownloader: media file writer
package logger
