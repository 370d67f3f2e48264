package api

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodePayload converts a send request body into raw bytes. An empty format
// means text. Hex input may contain spaces between byte pairs. The error
// messages are part of the API surface.
func DecodePayload(data, format string) ([]byte, error) {
	switch format {
	case "", "text":
		return []byte(data), nil
	case "hex":
		raw, err := hex.DecodeString(strings.ReplaceAll(data, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("Invalid hex data: %v", err)
		}
		return raw, nil
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("Invalid base64 data: %v", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported data format: %s", format)
	}
}
