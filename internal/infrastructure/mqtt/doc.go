// Package mqtt provides MQTT client connectivity for the Eve door simulator.
//
// The simulated sensor is mirrored onto the broker so other home automation
// services can observe it and send it commands:
//
//	evedoor/device/<id>/state             retained attribute snapshot
//	evedoor/device/<id>/event/<cluster>/<event>
//	evedoor/device/<id>/command/<command> inbound commands
//	evedoor/system/status                 online/offline (LWT)
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDeviceCommands("eve-door"), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(topic, payload)
//	    })
package mqtt
