package mqtt

import "fmt"

// TopicPrefix is the root of every topic the service uses.
//
// Topics follow the flat scheme pooldose/{category}/{device_id}[/{name}],
// matching the monitor's message types.
const TopicPrefix = "pooldose"

// Topics builds the service's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ValueState("01220000095B_DEVICE", "ph")
//	// Returns: "pooldose/state/01220000095B_DEVICE/ph"
type Topics struct{}

// ValueState returns the retained state topic of one logical value.
//
// Example: pooldose/state/01220000095B_DEVICE/ph
func (Topics) ValueState(deviceID, name string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, name)
}

// DeviceState returns the topic carrying the structured snapshot.
//
// Example: pooldose/state/01220000095B_DEVICE
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// Command returns the topic on which writes to a value are requested.
//
// Example: pooldose/command/01220000095B_DEVICE/ph_target
func (Topics) Command(deviceID, name string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, deviceID, name)
}

// Ack returns the topic on which write outcomes are reported.
//
// Example: pooldose/ack/01220000095B_DEVICE/ph_target
func (Topics) Ack(deviceID, name string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, deviceID, name)
}

// Health returns the device health topic. It also carries the Last Will.
//
// Example: pooldose/health/01220000095B_DEVICE
func (Topics) Health(deviceID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, deviceID)
}

// AllCommands returns a pattern matching every command for a device.
//
// Pattern: pooldose/command/01220000095B_DEVICE/+
func (Topics) AllCommands(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, deviceID)
}

// NameFromTopic returns the last level of a topic, the logical value name
// for command, ack and value state topics.
func NameFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}
