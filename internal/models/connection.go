package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Connection is the registry record for one live websocket connection. Auth
// holds the serialized authentication context resolved at connect time.
type Connection struct {
	ConnectionID uuid.UUID       `json:"connectionId"`
	Auth         json.RawMessage `json:"auth"`
	ConnectedAt  time.Time       `json:"connectedAt"`
}
