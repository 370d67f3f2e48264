package main

import "testing"

func TestWSURL(t *testing.T) {
	got := wsURL("127.0.0.1", 8080, "iot_sensor", false)
	if got != "ws://127.0.0.1:8080/api/connections/iot_sensor/ws" {
		t.Errorf("wsURL = %q", got)
	}
}

func TestWSURLWithTLS(t *testing.T) {
	got := wsURL("example.com", 443, "embedded_mcu", true)
	if got != "wss://example.com:443/api/connections/embedded_mcu/ws" {
		t.Errorf("wsURL = %q", got)
	}
}
