package conn

import (
	"time"

	"github.com/fleetlink/fleetlink/pkg/types"
)

// Wire message bodies. Each is the data field of one named-event frame.

type authRequest struct {
	Credential    string `json:"credential"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type fleetDataMessage struct {
	Credential string `json:"credential"`
	Timestamp  int64  `json:"timestamp"`
	Compressed bool   `json:"compressed"`
	Data       string `json:"data"` // gzip-then-base64 of the JSON payload array
}

type lootMessage struct {
	Credential    string           `json:"credential"`
	CharacterName string           `json:"characterName"`
	FactionID     string           `json:"factionId"`
	FactionTag    string           `json:"factionTag"`
	SubmarineName string           `json:"submarineName"`
	Sectors       []int32          `json:"sectors"`
	Items         []types.LootItem `json:"items"`
	TotalValue    int64            `json:"totalValue"`
	CapturedAt    time.Time        `json:"capturedAt"`
}

// serverResponse covers data_response and loot_response; both are
// informational only and never affect delivery accounting.
type serverResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
