package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gateway.
const (
	MeasurementValidation  = "pilight_validation"
	MeasurementCatalogLoad = "pilight_catalog_load"
)

// OutcomeAccepted tags a payload that passed validation. Rejections use
// the rejection kind (missing_protocol, unknown_protocol, ...) as outcome.
const OutcomeAccepted = "accepted"

// WriteValidation records one validation attempt.
//
// Example:
//
//	client.WriteValidation("send", "arctech_switch", influxdb.OutcomeAccepted)
//	client.WriteValidation("receive", "", "missing_protocol")
func (c *Client) WriteValidation(direction, protocol, outcome string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(validationPoint(direction, protocol, outcome, time.Now()))
}

// WriteCatalogLoad records a catalog becoming active.
func (c *Client) WriteCatalogLoad(protocols int, source string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(catalogLoadPoint(protocols, source, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func validationPoint(direction, protocol, outcome string, at time.Time) *write.Point {
	tags := map[string]string{
		"direction": direction,
		"outcome":   outcome,
	}
	// Influx drops empty tag values, so a payload without a protocol is
	// tagged explicitly.
	if protocol == "" {
		protocol = "none"
	}
	tags["protocol"] = protocol

	accepted := outcome == OutcomeAccepted
	return write.NewPoint(MeasurementValidation, tags,
		map[string]interface{}{
			"count":    1,
			"accepted": accepted,
		},
		at,
	)
}

func catalogLoadPoint(protocols int, source string, at time.Time) *write.Point {
	return write.NewPoint(MeasurementCatalogLoad,
		map[string]string{"source": source},
		map[string]interface{}{"protocols": protocols},
		at,
	)
}
