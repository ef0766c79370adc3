package types

// NewSessionPayload is the body of POST /session on the hub.
type NewSessionPayload struct {
	// Acceptable capability profiles in order of preference. At least one
	// profile is required.
	Capabilities []Capabilities `json:"capabilities"`
	// Dialects the caller speaks. Defaults to ["W3C"] when omitted.
	// example: ["W3C"]
	Dialects []Dialect `json:"dialects,omitempty"`
	// Free-form metadata recorded on the request.
	Metadata map[string]string `json:"metadata,omitempty"`
	// How long the request may wait for capacity, in milliseconds. Zero or
	// omitted picks the server's default budget.
	// example: 30000
	TimeoutMS int64 `json:"timeout_ms,omitempty" example:"30000"`
}

// CreateSessionResponse is returned by POST /session on success.
type CreateSessionResponse struct {
	Session Session `json:"session"`
}

// RegisterNodeRequest is the body of POST /node. A node registers by
// describing itself; registering an already-known id replaces the previous
// registration wholesale.
type RegisterNodeRequest struct {
	Status NodeStatus `json:"status"`
}

// StatusResponse is returned by GET /status on the hub.
type StatusResponse struct {
	// Ready is true once the server accepts session traffic.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Human-readable readiness summary.
	// example: 2 nodes registered
	Message string `json:"message" example:"2 nodes registered"`
	// Number of requests currently waiting in the backlog.
	// example: 0
	QueueSize int `json:"queue_size" example:"0"`
	// Aggregate view over all registered nodes.
	Distributor DistributorStatus `json:"distributor"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: no node supports the requested capabilities
	Error string `json:"error" example:"no node supports the requested capabilities"`
	// HTTP status code.
	// example: 408
	Code int `json:"code" example:"408"`
}
