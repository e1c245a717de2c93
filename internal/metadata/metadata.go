// internal/metadata/metadata.go
package metadata

import (
	"encoding/json"
	"fmt"
)

// RobotMode is the running mode distributed by the metadata daemon.
type RobotMode string

const (
	ModeComp RobotMode = "COMP"
	ModeDev  RobotMode = "DEV"
)

// Metadata is the match state distributed to the robot before and during a
// game. Fields default to development values until the daemon publishes.
type Metadata struct {
	Arena        string    `json:"arena"`
	Zone         int       `json:"zone"`
	Mode         RobotMode `json:"mode"`
	MarkerOffset int       `json:"marker_offset"`
	GameTimeout  *int      `json:"game_timeout"`
	WifiEnabled  bool      `json:"wifi_enabled"`
}

// stateMessage is the wire shape of the daemon's retained state topic.
type stateMessage struct {
	Status   string    `json:"status"`
	Metadata *Metadata `json:"metadata"`
}

// parseStateMessage decodes one state topic payload.
func parseStateMessage(payload []byte) (*Metadata, error) {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("malformed metadata state message: %w", err)
	}
	if msg.Metadata == nil {
		return nil, fmt.Errorf("metadata state message carries no metadata")
	}
	return msg.Metadata, nil
}
