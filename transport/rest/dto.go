package rest

import (
	"time"

	"market-chat/domain/chat"
)

type messageDTO struct {
	ID             string    `json:"id" validate:"required"`
	ConversationID string    `json:"conversationId" validate:"required"`
	SenderID       string    `json:"senderId" validate:"required"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt" validate:"required"`
	Status         string    `json:"status"`
}

func (d messageDTO) toDomain() chat.Message {
	return chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
		Status:         chat.ParseStatus(d.Status),
	}
}

type lastMessageDTO struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type conversationDTO struct {
	ID             string         `json:"id" validate:"required"`
	ParticipantIDs []string       `json:"participantIds" validate:"required,len=2"`
	LastMessage    lastMessageDTO `json:"lastMessage"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (d conversationDTO) toDomain() chat.Conversation {
	conv := chat.Conversation{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		LastMessage: chat.LastMessage{
			Content:   d.LastMessage.Content,
			SenderID:  d.LastMessage.SenderID,
			CreatedAt: d.LastMessage.CreatedAt,
		},
	}
	copy(conv.Participants[:], d.ParticipantIDs)
	return conv
}

type paginationDTO struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (d paginationDTO) toDomain() chat.Pagination {
	return chat.Pagination{Page: d.Page, Limit: d.Limit, Total: d.Total, Pages: d.Pages}
}

type messagesPageDTO struct {
	Messages   []messageDTO  `json:"messages"`
	Pagination paginationDTO `json:"pagination"`
}

type conversationsPageDTO struct {
	Conversations []conversationDTO `json:"conversations"`
	Pagination    paginationDTO     `json:"pagination"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

type createConversationRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,len=2,dive,required"`
}
