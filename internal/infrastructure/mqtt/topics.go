package mqtt

import "strings"

// DefaultTopicPrefix is the root of every gateway topic.
const DefaultTopicPrefix = "pilight"

// Directions a payload can travel through the gateway.
const (
	// DirectionSend covers commands heading to the pilight daemon.
	DirectionSend = "send"

	// DirectionReceive covers events reported by the pilight daemon.
	DirectionReceive = "receive"
)

// Topics provides builders for the gateway's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{Prefix: "pilight"}
//	topics.Validated(mqtt.DirectionSend, "arctech_switch")
//	// Returns: "pilight/validated/send/arctech_switch"
//
// The zero value uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// =============================================================================
// Inbound Topics
// =============================================================================

// Send returns the topic carrying unvalidated outgoing commands.
//
// Example: pilight/send
func (t Topics) Send() string {
	return t.root() + "/send"
}

// Receive returns the topic carrying unvalidated daemon events.
//
// Example: pilight/receive
func (t Topics) Receive() string {
	return t.root() + "/receive"
}

// Inbound returns the inbound topic for a direction, or "" when the
// direction is unknown.
func (t Topics) Inbound(direction string) string {
	switch direction {
	case DirectionSend:
		return t.Send()
	case DirectionReceive:
		return t.Receive()
	default:
		return ""
	}
}

// =============================================================================
// Outbound Topics
// =============================================================================

// Validated returns the topic a validated payload is republished on.
//
// Example: pilight/validated/send/arctech_switch
func (t Topics) Validated(direction, protocol string) string {
	return t.root() + "/validated/" + segment(direction) + "/" + segment(protocol)
}

// AllValidated returns a wildcard matching every validated payload.
//
// Example: pilight/validated/#
func (t Topics) AllValidated() string {
	return t.root() + "/validated/#"
}

// Rejected returns the topic rejection reports are published on.
//
// Example: pilight/rejected/receive
func (t Topics) Rejected(direction string) string {
	return t.root() + "/rejected/" + segment(direction)
}

// AllRejected returns a wildcard matching every rejection report.
//
// Example: pilight/rejected/+
func (t Topics) AllRejected() string {
	return t.root() + "/rejected/+"
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the retained gateway status topic (also the LWT topic).
//
// Example: pilight/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// segmentReplacer strips characters that would change the topic structure.
var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// segment makes a caller-supplied value safe to embed as one topic level.
// Protocol names come from the catalog, so an empty name still yields a
// publishable topic.
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return segmentReplacer.Replace(s)
}
