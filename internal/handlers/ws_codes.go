// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the quiz socket handler. These give
// clients a more specific reason than the standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionError = 3001 // Session cookie was present but unverifiable.
)
