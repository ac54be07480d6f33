// Package wire defines the JSON bodies exchanged between the Nodea client
// and server. Byte slices travel as standard base64 strings.
package wire

import "time"

// Record is a stored record as returned to clients. The guard is an internal
// field and never leaves the server.
type Record struct {
	ID           string    `json:"id"`
	Collection   string    `json:"collection"`
	ModuleUserID string    `json:"module_user_id"`
	Payload      []byte    `json:"payload"`
	CipherIV     []byte    `json:"cipher_iv"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// CreateRecordRequest is the body of POST /api/collections/{c}/records.
type CreateRecordRequest struct {
	ModuleUserID string `json:"module_user_id"`
	Payload      []byte `json:"payload"`
	CipherIV     []byte `json:"cipher_iv"`
	Guard        string `json:"guard"`
}

// UpdateRecordRequest is the body of PATCH /api/collections/{c}/records/{id}.
// Absent fields are left untouched.
type UpdateRecordRequest struct {
	Payload  []byte  `json:"payload,omitempty"`
	CipherIV []byte  `json:"cipher_iv,omitempty"`
	Guard    *string `json:"guard,omitempty"`
}

// RecordPage is one page of a list request. Page numbers start at 1.
type RecordPage struct {
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
	Items      []*Record `json:"items"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type SaltRequest struct {
	Username string `json:"username"`
}

type SaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type TokenResponse struct {
	UserID       string `json:"user_id,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// StateValue carries one opaque user field (sealed module config or prefs).
type StateValue struct {
	Value string `json:"value"`
}

// PresignedURL points at object storage for a sealed backup.
type PresignedURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type PingResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// State field names accepted by /api/users/{id}/state/{field}.
const (
	StateModules = "modules"
	StatePrefs   = "prefs"
)
