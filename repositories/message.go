//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"market-chat/domain/chat"
)

type IMessageRepository interface {
	StoreMessage(msg chat.Message) error
	GetMessages(conversationID string, cursor *string) ([]chat.Message, *string, error)
	StoreConversation(conv chat.Conversation) error
	GetConversation(conversationID string) (chat.Conversation, error)
}

// MessageRepository is the local BadgerDB cache of conversation
// history, so a reopened conversation paints before the network answers.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored shape; the wire status travels as a string
// so old records survive status renames.
type diskMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Status         string    `json:"status"`
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "dm:{conversation_id}:{timestamp_padded}:{message_id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(msg chat.Message) error {
	key := fmt.Sprintf("dm:%s:%019d:%s",
		msg.ConversationID,
		msg.CreatedAt.UnixNano(),
		msg.ID,
	)
	bytes, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages retrieves cached messages for a conversation using a reverse
// prefix scan, newest first. Thanks to the padded timestamp in the key the
// scan is naturally time ordered. It stops once limitMessages is reached
// and hands back a cursor for the next page.
func (m MessageRepository) GetMessages(conversationID string, cursor *string) ([]chat.Message, *string, error) {
	var raw [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("dm:%s:", conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(raw) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d cached messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]chat.Message, 0, len(raw))
	for _, b := range raw {
		var d diskMessage
		if err = json.Unmarshal(b, &d); err != nil {
			return nil, nil, err
		}
		messages = append(messages, d.toDomain())
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

// StoreConversation keeps the latest summary row for the list screen.
func (m MessageRepository) StoreConversation(conv chat.Conversation) error {
	bytes, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("conv:"+conv.ID), bytes)
	})
}

func (m MessageRepository) GetConversation(conversationID string) (chat.Conversation, error) {
	var conv chat.Conversation
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("conv:" + conversationID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	return conv, err
}

func fromDomain(msg chat.Message) diskMessage {
	return diskMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.UTC(),
		Status:         msg.Status.String(),
	}
}

func (d diskMessage) toDomain() chat.Message {
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
