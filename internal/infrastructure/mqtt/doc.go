// Package mqtt connects the biometric station to an MQTT broker.
//
// The station publishes quality verdicts, recovery events and a retained
// health document, and listens for remote commands (start, stop, led) on
// its command topic. A retained status message plus a Last Will mark the
// station online or offline for dashboards.
//
// Topic layout, all under "biometric/<station-id>/":
//
//	status    retained online/offline, also the LWT topic
//	health    retained periodic health document
//	quality   one message per published verdict
//	recovery  one message per forced sensor reinitialise
//	command   inbound commands
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Station.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.Quality(stationID), verdict, false)
package mqtt
