// Package devserver is an in-memory marketplace double: the REST API,
// the push websocket, and the auth endpoints, enough to run the client
// end to end without the real backend.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"market-chat/auth"
	"market-chat/domain/chat"
)

type userRecord struct {
	ID           string
	Email        string
	PasswordHash string
}

type conversation struct {
	chat.Conversation
	// messages ordered oldest first
	messages []chat.Message
}

type Server struct {
	mu     sync.Mutex
	signer auth.Signer
	log    *slog.Logger

	users         map[string]userRecord    // email -> record
	conversations map[string]*conversation // id -> state
	byPair        map[string]string        // participant pair key -> conversation id

	pushConns map[string][]*websocket.Conn // userID -> sockets
	upgrader  websocket.Upgrader
}

func New(signer auth.Signer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		signer:        signer,
		log:           log,
		users:         make(map[string]userRecord),
		conversations: make(map[string]*conversation),
		byPair:        make(map[string]string),
		pushConns:     make(map[string][]*websocket.Conn),
	}
}

// Handler builds the route table. Everything except register and login
// sits behind bearer validation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/users/{id}/conversations", s.handleListConversations)
	protected.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	protected.HandleFunc("GET /api/conversations/{id}/messages", s.handleListMessages)
	protected.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)
	protected.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	protected.HandleFunc("GET /api/push", s.handlePush)

	mux.Handle("/api/", auth.RequireAuth(s.signer, protected))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := auth.ValidateRegister(auth.RegisterRequest(req)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hashing failed")
		return
	}
	record := userRecord{ID: uuid.NewString(), Email: req.Email, PasswordHash: hash}
	s.users[req.Email] = record
	writeJSON(w, http.StatusCreated, map[string]string{"userId": record.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	record, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown credentials")
		return
	}
	match, err := auth.ComparePassword(req.Password, record.PasswordHash)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "unknown credentials")
		return
	}

	token, err := s.signer.GenerateToken(record.ID, []string{"user"}, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": record.ID})
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

func pagination(page, limit, total int) map[string]int {
	pages := (total + limit - 1) / limit
	return map[string]int{"page": page, "limit": limit, "total": total, "pages": pages}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	page, limit := pageParams(r)

	s.mu.Lock()
	var rows []*conversation
	for _, c := range s.conversations {
		if c.Participants[0] == userID || c.Participants[1] == userID {
			rows = append(rows, c)
		}
	}
	// Most recent activity first, the order the list screen expects.
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LastMessage.CreatedAt.After(rows[j].LastMessage.CreatedAt)
	})
	total := len(rows)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]map[string]any, 0, end-start)
	for _, c := range rows[start:end] {
		out = append(out, conversationJSON(c.Conversation))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": out,
		"pagination":    pagination(page, limit, total),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.conversations[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conversationJSON(c.Conversation))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	s.mu.Lock()
	c, ok := s.conversations[r.PathValue("id")]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	total := len(c.messages)
	// Page 1 is the newest slice; walk backwards from the end.
	end := total - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]map[string]any, 0, end-start)
	// Newest first within a page.
	for i := end - 1; i >= start; i-- {
		out = append(out, messageJSON(c.messages[i]))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":   out,
		"pagination": pagination(page, limit, total),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, _ := auth.UserIDFrom(r.Context())
	var req struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid message")
		return
	}

	s.mu.Lock()
	c, ok := s.conversations[r.PathValue("id")]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: c.ID,
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
		Status:         chat.StatusSent,
	}
	c.messages = append(c.messages, msg)
	c.LastMessage = chat.LastMessage{
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		CreatedAt: msg.CreatedAt,
	}
	s.mu.Unlock()

	s.pushTo(req.ReceiverID, map[string]any{
		"type":    "message.received",
		"message": messageJSON(msg),
	})

	writeJSON(w, http.StatusCreated, messageJSON(msg))
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ParticipantIDs) != 2 {
		writeError(w, http.StatusBadRequest, "two participants required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := chat.PairKey(req.ParticipantIDs[0], req.ParticipantIDs[1])
	if id, exists := s.byPair[key]; exists {
		writeJSON(w, http.StatusOK, conversationJSON(s.conversations[id].Conversation))
		return
	}
	conv := &conversation{Conversation: chat.Conversation{
		ID:           uuid.NewString(),
		Participants: [2]string{req.ParticipantIDs[0], req.ParticipantIDs[1]},
		CreatedAt:    time.Now().UTC(),
	}}
	s.conversations[conv.ID] = conv
	s.byPair[key] = conv.ID
	writeJSON(w, http.StatusCreated, conversationJSON(conv.Conversation))
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.pushConns[userID] = append(s.pushConns[userID], conn)
	s.mu.Unlock()

	// Reader loop only detects disconnects; the push channel is
	// server to client.
	go func() {
		defer s.dropConn(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropConn(userID string, conn *websocket.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := s.pushConns[userID]
	for i, c := range conns {
		if c == conn {
			s.pushConns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
}

func (s *Server) pushTo(userID string, frame map[string]any) {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.pushConns[userID]...)
	s.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(frame); err != nil {
			s.log.Debug("push write failed", "user", userID, "err", err)
		}
	}
}

// EmitDelivered injects a delivery ack frame, as the real backend does
// once the counterpart device confirms.
func (s *Server) EmitDelivered(userID, messageID string) {
	s.pushTo(userID, map[string]any{"type": "message.delivered", "messageId": messageID})
}

func (s *Server) EmitSeen(userID, messageID string) {
	s.pushTo(userID, map[string]any{"type": "message.seen", "messageId": messageID})
}

func (s *Server) EmitTyping(userID, conversationID, typistID string, isTyping bool) {
	s.pushTo(userID, map[string]any{
		"type":           "typing.changed",
		"conversationId": conversationID,
		"userId":         typistID,
		"isTyping":       isTyping,
	})
}

// SeedUser registers a user with a known id, bypassing the password
// flow, for scenarios that only need an authenticated actor.
func (s *Server) SeedUser(id, email, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = userRecord{ID: id, Email: email, PasswordHash: passwordHash}
}

// SeedConversation installs a conversation with history, oldest first.
func (s *Server) SeedConversation(conv chat.Conversation, history []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &conversation{Conversation: conv, messages: history}
	if n := len(history); n > 0 {
		last := history[n-1]
		c.LastMessage = chat.LastMessage{
			Content:   last.Content,
			SenderID:  last.SenderID,
			CreatedAt: last.CreatedAt,
		}
	}
	s.conversations[conv.ID] = c
	s.byPair[chat.PairKey(conv.Participants[0], conv.Participants[1])] = conv.ID
}

// PushConnections reports how many push sockets a user currently holds.
func (s *Server) PushConnections(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushConns[userID])
}

// MessageCount reports how many messages a conversation holds.
func (s *Server) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[conversationID]; ok {
		return len(c.messages)
	}
	return 0
}

func conversationJSON(c chat.Conversation) map[string]any {
	return map[string]any{
		"id":             c.ID,
		"participantIds": []string{c.Participants[0], c.Participants[1]},
		"lastMessage": map[string]any{
			"content":   c.LastMessage.Content,
			"senderId":  c.LastMessage.SenderID,
			"createdAt": c.LastMessage.CreatedAt.Format(time.RFC3339Nano),
		},
		"createdAt": c.CreatedAt.Format(time.RFC3339Nano),
	}
}

func messageJSON(m chat.Message) map[string]any {
	return map[string]any{
		"id":             m.ID,
		"conversationId": m.ConversationID,
		"senderId":       m.SenderID,
		"receiverId":     m.ReceiverID,
		"content":        m.Content,
		"createdAt":      m.CreatedAt.Format(time.RFC3339Nano),
		"status":         m.Status.String(),
	}
}
