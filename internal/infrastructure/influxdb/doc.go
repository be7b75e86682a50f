// Package influxdb writes gateway metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Two measurements are written:
//
//	pilight_validation    tags direction, protocol, outcome; fields count, accepted
//	pilight_catalog_load  tag source; field protocols
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WriteValidation("send", "arctech_switch", influxdb.OutcomeAccepted)
//
// Write failures are delivered asynchronously to the SetOnError callback.
package influxdb
