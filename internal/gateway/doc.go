// Package gateway sits between MQTT clients and the pilight daemon and
// only forwards payloads that match the protocol catalog.
//
// It subscribes to {prefix}/send (commands heading to the daemon) and
// {prefix}/receive (events coming from it). Each message is decoded,
// validated through a protocol.Holder and then either republished on
// {prefix}/validated/{direction}/{protocol} or reported on
// {prefix}/rejected/{direction}. Rejections can also be written to the
// audit log, and every outcome is counted and optionally sent to InfluxDB.
package gateway
