package types

// GenerateRequest is the body accepted by POST /generate.
type GenerateRequest struct {
	// Prompt text to continue. Omitted means the empty string.
	// example: Hello
	Prompt string `json:"prompt" example:"Hello"`
}

// GenerateResponse is returned by POST /generate on success.
type GenerateResponse struct {
	// Decoded text of the full generated sequence, prompt included.
	// example: Hello, world!
	Response string `json:"response" example:"Hello, world!"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: generation failed
	Error string `json:"error" example:"generation failed"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Always "healthy" once the server is reachable.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Compute device selected at startup.
	// example: cuda
	Device string `json:"device" example:"cuda"`
}
