package backend

import "strings"

// SessionType is the support mode of a conversation
type SessionType string

const (
	SessionDoctor    SessionType = "DOCTOR"
	SessionTherapist SessionType = "THERAPIST"
)

// Valid reports whether s is empty or one of the known modes
func (s SessionType) Valid() bool {
	switch s {
	case "", SessionDoctor, SessionTherapist:
		return true
	}
	return false
}

// ParseSessionType accepts "doctor"/"therapist" in any case
func ParseSessionType(s string) (SessionType, bool) {
	st := SessionType(strings.ToUpper(strings.TrimSpace(s)))
	if st == "" || !st.Valid() {
		return "", false
	}
	return st, true
}

// SenderType is the author of a message as reported by the backend
type SenderType string

const (
	SenderUser SenderType = "USER"
	SenderAI   SenderType = "AI"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Role maps the wire sender to "user" or "assistant". A missing sender is
// rendered as the assistant.
func (s SenderType) Role() string {
	if strings.EqualFold(string(s), string(SenderUser)) {
		return RoleUser
	}
	return RoleAssistant
}

// CreateUserRequest is the body of POST /signup
type CreateUserRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the read-only user projection; it never carries the password
type UserResponse struct {
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"createdAt"`
}

// LoginResponse is returned by POST /login
type LoginResponse struct {
	JWTToken     string        `json:"jwtToken"`
	ExpiresAt    string        `json:"expiresAt"`
	UserResponse *UserResponse `json:"userResponse"`
}

// ConversationRequest is the body of POST /conversation
type ConversationRequest struct {
	Title string `json:"title"`
}

// ConversationPatch is the body of PUT /conversation/{id}; nil fields are left out
type ConversationPatch struct {
	Title       *string      `json:"title,omitempty"`
	SessionType *SessionType `json:"sessionType,omitempty"`
}

// ConversationResponse is the summary projection of a conversation
type ConversationResponse struct {
	ConversationID int64       `json:"conversationId"`
	Name           string      `json:"name"`
	SessionType    SessionType `json:"sessionType,omitempty"`
	CreatedAt      Timestamp   `json:"createdAt"`
}

// MessageRequest is the body of POST /conversation/{id}/messages
type MessageRequest struct {
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"createdAt"`
}

// MessageResponse is a message as confirmed by the backend
type MessageResponse struct {
	MessageID  int64      `json:"messageId,omitempty"`
	Content    string     `json:"content"`
	SenderType SenderType `json:"senderType,omitempty"`
	CreatedAt  Timestamp  `json:"createdAt"`
}

// ErrorResponse is the error body the backend sends on failure
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
