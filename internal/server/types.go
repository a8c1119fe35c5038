package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// TokenView is one registry entry in the token list response
type TokenView struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"display_symbol"`
	Address       string `json:"address,omitempty"`
	Decimals      uint8  `json:"decimals"`
	Native        bool   `json:"native"`
	LogoRef       string `json:"logo_ref,omitempty"`
}

// SetSellRequest updates the sell side of a session
type SetSellRequest struct {
	Token  string `json:"token"`  // Sell token symbol (optional, keep current if empty)
	Amount string `json:"amount"` // Decimal string (optional, keep current if empty)
}

// SetModeRequest switches the allocation input mode
type SetModeRequest struct {
	Mode string `json:"mode"` // "ratio" or "percentage"
}

// SetSlotRequest edits one output slot
type SetSlotRequest struct {
	Token  *string `json:"token,omitempty"`  // New token symbol ("" clears the slot)
	Weight *string `json:"weight,omitempty"` // New weight as decimal string
}

// ConnectRequest attaches a wallet address to a session
type ConnectRequest struct {
	Address string `json:"address"` // Hex wallet address
}

// DeepLinkResponse carries an encoded allocation query string
type DeepLinkResponse struct {
	Link string `json:"link"`
}

// DeepLinkApplyRequest replays an encoded allocation onto a session
type DeepLinkApplyRequest struct {
	Link string `json:"link"`
}

// SubmitResponse reports a confirmed swap
type SubmitResponse struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}
