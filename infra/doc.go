// Package infra contains technical adapters: solver backends, CSV and
// case file readers, MQTT publishing, metrics exporters and error
// reporting. These packages should depend only on the interfaces defined
// in the core packages.
package infra
