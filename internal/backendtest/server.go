// Package backendtest runs an in-memory Aldebaran backend for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"AldebaranChat/internal/backend"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ListShape selects how GET /conversation encodes its answer
type ListShape string

const (
	ShapeArray   ListShape = "array"
	ShapeWrapped ListShape = "wrapped"
	ShapeSingle  ListShape = "single"
	ShapeNull    ListShape = "null"
	ShapeString  ListShape = "string"
)

type ctxKey string

const ctxKeyEmail ctxKey = "email"

type account struct {
	user         backend.UserResponse
	passwordHash []byte
}

type conversation struct {
	owner    string
	summary  backend.ConversationResponse
	messages []backend.MessageResponse
}

// Server is a fake of the backend REST contract
type Server struct {
	*httptest.Server

	secret []byte

	mu         sync.Mutex
	accounts   map[string]*account
	convs      map[int64]*conversation
	nextConvID int64
	nextMsgID  int64

	listShape   ListShape
	failSends   bool
	sendHistory bool
	tokenTTL    time.Duration
	requests    []string
}

// New starts a fake backend; Close it when done
func New() *Server {
	s := &Server{
		secret:     []byte("backendtest-secret"),
		accounts:   make(map[string]*account),
		convs:      make(map[int64]*conversation),
		nextConvID: 1,
		nextMsgID:  1,
		listShape:  ShapeArray,
		tokenTTL:   time.Hour,
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/signup", s.signup)
	r.Post("/login", s.login)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/conversation", s.listConversations)
		r.Post("/conversation", s.createConversation)
		r.Get("/conversation/{id}", s.getConversation)
		r.Put("/conversation/{id}", s.updateConversation)
		r.Delete("/conversation/{id}", s.deleteConversation)
		r.Get("/conversation/{id}/messages/all", s.listMessages)
		r.Post("/conversation/{id}/messages", s.createMessage)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// SetListShape changes the encoding of GET /conversation
func (s *Server) SetListShape(shape ListShape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listShape = shape
}

// FailSends makes POST .../messages answer 500
func (s *Server) FailSends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSends = fail
}

// SendReturnsHistory makes POST .../messages answer with the whole history,
// as the deployed backend does, instead of the assistant's reply
func (s *Server) SendReturnsHistory(history bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendHistory = history
}

// Requests returns "METHOD path" for every request received so far
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Secret is the HS256 key tokens are signed with
func (s *Server) Secret() []byte {
	return s.secret
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyEmail, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserName == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "userName, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[req.Email]; exists {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	acc := &account{
		user: backend.UserResponse{
			UserName:  req.UserName,
			Email:     req.Email,
			CreatedAt: backend.NewTimestamp(time.Now()),
		},
		passwordHash: hash,
	}
	s.accounts[req.Email] = acc
	writeJSON(w, http.StatusCreated, acc.user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req backend.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Email]
	ttl := s.tokenTTL
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	expiresAt := time.Now().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   req.Email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	user := acc.user
	writeJSON(w, http.StatusOK, backend.LoginResponse{
		JWTToken:     signed,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
		UserResponse: &user,
	})
}

func (s *Server) owned(r *http.Request) (*conversation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, false
	}
	conv, ok := s.convs[id]
	if !ok || conv.owner != r.Context().Value(ctxKeyEmail) {
		return nil, false
	}
	return conv, true
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := r.Context().Value(ctxKeyEmail)
	var list []backend.ConversationResponse
	for _, c := range s.convs {
		if c.owner == owner {
			list = append(list, c.summary)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ConversationID < list[j].ConversationID })

	switch s.listShape {
	case ShapeWrapped:
		writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
	case ShapeSingle:
		if len(list) == 0 {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, list[0])
	case ShapeNull:
		writeJSON(w, http.StatusOK, nil)
	case ShapeString:
		writeJSON(w, http.StatusOK, "unexpected")
	default:
		if list == nil {
			list = []backend.ConversationResponse{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req backend.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextConvID
	s.nextConvID++
	conv := &conversation{
		owner: r.Context().Value(ctxKeyEmail).(string),
		summary: backend.ConversationResponse{
			ConversationID: id,
			Name:           req.Title,
			SessionType:    backend.SessionDoctor,
			CreatedAt:      backend.NewTimestamp(time.Now()),
		},
	}
	s.convs[id] = conv
	writeJSON(w, http.StatusCreated, conv.summary)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv.summary)
}

func (s *Server) updateConversation(w http.ResponseWriter, r *http.Request) {
	var patch backend.ConversationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if patch.Title != nil {
		conv.summary.Name = *patch.Title
	}
	if patch.SessionType != nil {
		if !patch.SessionType.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown session type")
			return
		}
		conv.summary.SessionType = *patch.SessionType
	}
	writeJSON(w, http.StatusOK, conv.summary)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	delete(s.convs, conv.summary.ConversationID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	msgs := append([]backend.MessageResponse{}, conv.messages...)
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req backend.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSends {
		writeError(w, http.StatusInternalServerError, "Failed to process message request")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	conv, ok := s.owned(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	now := time.Now()
	user := backend.MessageResponse{
		MessageID:  s.nextMsgID,
		Content:    strings.TrimSpace(req.Content),
		SenderType: backend.SenderUser,
		CreatedAt:  backend.NewTimestamp(now),
	}
	reply := backend.MessageResponse{
		MessageID:  s.nextMsgID + 1,
		Content:    "You said: " + user.Content,
		SenderType: backend.SenderAI,
		CreatedAt:  backend.NewTimestamp(now.Add(time.Millisecond)),
	}
	s.nextMsgID += 2
	conv.messages = append(conv.messages, user, reply)

	if s.sendHistory {
		writeJSON(w, http.StatusCreated, append([]backend.MessageResponse{}, conv.messages...))
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, backend.ErrorResponse{Message: message})
}
