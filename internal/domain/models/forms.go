package models

// Form payloads submitted from the admin console. Validation tags mirror the
// original forms' native constraints so bad input is rejected before any
// upstream request is built.

// ExchangeForm creates an exchange.
type ExchangeForm struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,slug"`
}

// ExchangePatch partially updates an exchange.
type ExchangePatch struct {
	Name *string `json:"name,omitempty"`
	Slug *string `json:"slug,omitempty" validate:"omitempty,slug"`
}

// AddressForm creates a labeled address. ExchangeID must be a non-empty
// selection from the currently loaded exchange list.
type AddressForm struct {
	ExchangeID string       `json:"exchange_id" validate:"required"`
	Chain      Chain        `json:"chain" validate:"required,oneof=EVM BTC"`
	Address    string       `json:"address" validate:"required"`
	Label      AddressLabel `json:"label" validate:"required,oneof=hot cold deposit reserve"`
	IsActive   bool         `json:"is_active"`
	ClusterID  *string      `json:"cluster_id,omitempty"`
	Notes      *string      `json:"notes,omitempty"`
}

// AddressPatch partially updates an address.
type AddressPatch struct {
	Label     *AddressLabel `json:"label,omitempty" validate:"omitempty,oneof=hot cold deposit reserve"`
	ClusterID *string       `json:"cluster_id,omitempty"`
	IsActive  *bool         `json:"is_active,omitempty"`
	Notes     *string       `json:"notes,omitempty"`
}

// AddressFilter narrows the admin address listing.
type AddressFilter struct {
	ExchangeID string
	Chain      Chain
	IsActive   *bool
}
