package types

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID   string                 `json:"tool_id" binding:"required"`
	Params   map[string]interface{} `json:"params"`
	ClientID *string                `json:"client_id,omitempty"`
}

// GenerateLocaleRequest names the locale to enable and generate
type GenerateLocaleRequest struct {
	Locale string `json:"locale" binding:"required"`
}

// PackageRequest names a kernel package to install or remove
type PackageRequest struct {
	Package string `json:"package" binding:"required"`
}

// WSMessage represents a message received from a WebSocket observer
type WSMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// DiscoverRequest asks the registry for services matching a query
type DiscoverRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}
