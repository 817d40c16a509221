// Package vidfetch provides a high-level API to fetch video metadata and media
// from a downloader API deployment.
//
// Features:
//   - Presets for the Sora, TikTok and unrestricted deployments
//   - A namespaced TTL cache for bearer tokens and attribution parameters
//   - Attribution capture from landing URLs
//   - Progress reporting and safe output file names
package vidfetch
