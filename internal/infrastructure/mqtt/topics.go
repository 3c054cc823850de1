package mqtt

import "fmt"

// TopicPrefix is the root of every station topic.
const TopicPrefix = "biometric"

// Topics builds station topics. Use the helpers rather than formatting
// topic strings by hand.
//
//	mqtt.Topics{}.Quality("front-desk") // "biometric/front-desk/quality"
type Topics struct{}

// Status is the retained online/offline topic, also used for the LWT.
func (Topics) Status(stationID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, stationID)
}

// Health is the retained periodic health topic.
func (Topics) Health(stationID string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefix, stationID)
}

// Quality carries one message per published verdict.
func (Topics) Quality(stationID string) string {
	return fmt.Sprintf("%s/%s/quality", TopicPrefix, stationID)
}

// Recovery carries one message per forced sensor reinitialise.
func (Topics) Recovery(stationID string) string {
	return fmt.Sprintf("%s/%s/recovery", TopicPrefix, stationID)
}

// Command is the inbound command topic.
func (Topics) Command(stationID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefix, stationID)
}

// AllStations matches one topic kind across every station,
// e.g. AllStations("health") is "biometric/+/health".
func (Topics) AllStations(kind string) string {
	return fmt.Sprintf("%s/+/%s", TopicPrefix, kind)
}
