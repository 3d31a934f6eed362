// Package mqtt provides MQTT client connectivity for the PoolDose service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the device health topic
//   - Connection health monitoring
//
// # Topics
//
//	pooldose/state/<device_id>/<name>    retained decoded value
//	pooldose/state/<device_id>           structured snapshot
//	pooldose/command/<device_id>/<name>  write requests
//	pooldose/ack/<device_id>/<name>      write outcomes
//	pooldose/health/<device_id>          online/offline, LWT
//
// # Security Considerations
//
//   - TLS should be enabled when the broker is not on localhost (cfg.Broker.TLS=true)
//   - Anyone who can publish on the command topics can change dosing
//     setpoints; restrict them with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, static.DeviceID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(static.DeviceID), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(mqtt.NameFromTopic(topic), payload)
//	    })
//
// Tests that need a broker are behind the integration build tag.
package mqtt
