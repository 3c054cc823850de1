// Package health reports station health over MQTT.
//
// A Reporter publishes a retained Message to biometric/<station>/health on a
// fixed interval, and once more with status "stopping" when it is stopped.
// The MQTT client's Last Will covers crashes: the broker marks the station
// offline on its status topic.
//
// Status is derived from a Snapshot of the sensor session and capture loop:
//
//	failed sensor or faulted capture worker   unhealthy
//	acquisition failures or MQTT disconnected degraded
//	otherwise                                 healthy
package health
