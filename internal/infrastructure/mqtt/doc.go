// Package mqtt provides MQTT client connectivity for the pilight gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions that survive reconnects
//   - Last Will and Testament (LWT) on the system status topic
//
// # Topics
//
// Every topic hangs off a configurable prefix (default "pilight"):
//
//	pilight/send                          unvalidated commands for the daemon
//	pilight/receive                       unvalidated events from the daemon
//	pilight/validated/{direction}/{name}  payloads that passed validation
//	pilight/rejected/{direction}          rejection reports
//	pilight/system/status                 retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Receive(), client.QoS(), handler)
package mqtt
