package models

import (
	"time"

	"flowgate/pkg/httpx"
)

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Chain identifies a supported blockchain family.
type Chain string

const (
	ChainEVM Chain = "EVM"
	ChainBTC Chain = "BTC"
)

// AddressLabel classifies an exchange wallet address.
type AddressLabel string

const (
	LabelHot     AddressLabel = "hot"
	LabelCold    AddressLabel = "cold"
	LabelDeposit AddressLabel = "deposit"
	LabelReserve AddressLabel = "reserve"
)

// User is the identity resolved from the session on each protected page load.
// Never cached across navigations and never mutated by the gateway.
type User struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=admin user"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Exchange is a tracked exchange. List ordering is whatever the backend
// returns (insertion order).
type Exchange struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Slug      string    `json:"slug" validate:"required,slug"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
}

// Address is a labeled wallet address belonging to exactly one exchange.
type Address struct {
	ID         string       `json:"id" validate:"required"`
	ExchangeID string       `json:"exchange_id" validate:"required"`
	Chain      Chain        `json:"chain" validate:"required,oneof=EVM BTC"`
	Address    string       `json:"address" validate:"required"`
	Label      AddressLabel `json:"label" validate:"required,oneof=hot cold deposit reserve"`
	IsActive   bool         `json:"is_active"`
	ClusterID  *string      `json:"cluster_id,omitempty"`
	Notes      *string      `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// SyncState is the backend ingestion cursor, one row per chain. The gateway
// only reads it; resync completion is observed here, never reported directly.
type SyncState struct {
	Chain               Chain     `json:"chain" validate:"required,oneof=EVM BTC"`
	LastProcessedBlock  *int64    `json:"last_processed_block"`
	LastProcessedHeight *int64    `json:"last_processed_height"`
	UpdatedAt           time.Time `json:"updated_at" validate:"required"`
}

// Alert is a z-score netflow alert, windowed to 24h by the backend.
type Alert struct {
	ID          string    `json:"id" validate:"required"`
	ExchangeID  *string   `json:"exchange_id,omitempty"`
	AssetSymbol string    `json:"asset_symbol" validate:"required"`
	ZScore      float64   `json:"z_score"`
	Netflow     float64   `json:"netflow"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
}

// FlowPoint is one bucket of an exchange's aggregated flow series.
type FlowPoint struct {
	Bucket      time.Time `json:"bucket" validate:"required"`
	AssetSymbol string    `json:"asset_symbol"`
	Inflow      float64   `json:"inflow"`
	Outflow     float64   `json:"outflow"`
	Netflow     float64   `json:"netflow"`
}

// Validate fails closed on a malformed value decoded from an upstream
// response: a payload that does not satisfy its tags is an error, never
// partially rendered data.
func Validate(v interface{}) error {
	return httpx.ValidateStruct(v)
}

// ValidateAll validates every element of a decoded collection.
func ValidateAll[T any](items []T) error {
	for i := range items {
		if err := httpx.ValidateStruct(&items[i]); err != nil {
			return err
		}
	}
	return nil
}
