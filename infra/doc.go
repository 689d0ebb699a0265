// Package infra holds the adapters behind the core interfaces: the Octopus
// HTTP client, the on-disk series cache with its S3 mirror, metric sinks, the
// MQTT publisher and the zerolog logger.
package infra
