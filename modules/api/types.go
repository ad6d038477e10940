package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Price accepts either a JSON string ("12.50") or a JSON number (12.5) and
// keeps its literal text so the money parser sees exactly what was sent.
type Price string

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	*p = Price(data)
	return nil
}

// ProductRequest is the body of create and update calls. On update, absent
// fields are left unchanged.
type ProductRequest struct {
	Name           *string    `json:"name"`
	Price          *Price     `json:"price"`
	PublishAt      *time.Time `json:"publish_at"`
	ClearPublishAt bool       `json:"clear_publish_at"`
}

// PublishResponse reports the outcome of an immediate publish.
type PublishResponse struct {
	Message string `json:"message"`
	Changed bool   `json:"changed"`
	Product any    `json:"product"`
}

// ScheduleResponse reports a deferred publish.
type ScheduleResponse struct {
	Message string    `json:"message"`
	JobID   string    `json:"job_id"`
	RunAt   time.Time `json:"run_at"`
}
