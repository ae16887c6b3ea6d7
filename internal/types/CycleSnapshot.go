/*

This file contains the journal records written for every automated rebalance cycle and
every delivered message.

*/

package types

import (
	"encoding/json"
	"time"
)

// CycleSnapshot captures the vault before and after one automated rebalance cycle.
type CycleSnapshot struct {
	SnapshotID  int64     `json:"snapshot_id,omitempty"` // assigned by the database
	CycleNumber int       `json:"cycle_number"`
	CycleID     string    `json:"cycle_id"`
	Timestamp   time.Time `json:"timestamp"`

	// Pre-action state
	InitialAssets    TotalAssets `json:"initial_assets"`
	InitialPositions []Position  `json:"initial_positions"`
	InitialPrice     string      `json:"initial_price"`

	// Outcome
	Rebalanced     bool        `json:"rebalanced"`
	Error          string      `json:"error,omitempty"`
	FinalAssets    TotalAssets `json:"final_assets"`
	FinalPositions []Position  `json:"final_positions"`
	FinalPrice     string      `json:"final_price"`
	EventTypes     []string    `json:"event_types"`
	DurationMs     int64       `json:"duration_ms"`
}

// ActionReceipt records one delivered message and its outcome.
type ActionReceipt struct {
	ReceiptID int64           `json:"receipt_id,omitempty"` // assigned by the database
	Timestamp time.Time       `json:"timestamp"`
	Height    int64           `json:"height"`
	MsgType   string          `json:"msg_type"`
	Sender    string          `json:"sender"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Request   json.RawMessage `json:"request,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}
