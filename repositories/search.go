package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"market-chat/domain/chat"
)

// SearchRepository maintains the Bluge full-text index over cached
// message history, powering "find that message" in long conversations.
type SearchRepository struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, pageSize int) SearchRepository {
	return SearchRepository{writer: writer, log: log, pageSize: pageSize}
}

// SearchHit is one matching message, newest-ranked by relevance.
type SearchHit struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// IndexMessage upserts one message into the index; re-indexing the
// same id after a provisional swap replaces the previous document.
func (s SearchRepository) IndexMessage(msg chat.Message) error {
	doc := bluge.NewDocument(msg.ID).
		AddField(bluge.NewKeywordField("conversation", msg.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewStoredOnlyField("createdAt", []byte(msg.CreatedAt.UTC().Format(time.RFC3339Nano))))
	return s.writer.Update(doc.ID(), doc)
}

func (s SearchRepository) DeleteMessage(messageID string) error {
	return s.writer.Delete(bluge.Identifier(messageID))
}

// SearchPaginated runs a full-text query scoped to one conversation.
// offset skips already-seen hits; the total lets callers build page
// controls without a second query.
func (s SearchRepository) SearchPaginated(ctx context.Context, query, conversationID string, offset int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationID).SetField("conversation")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	request := bluge.NewTopNSearch(s.pageSize, q).
		SetFrom(offset).
		WithStandardAggregations()

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search %q: %w", query, err)
	}

	var hits []SearchHit
	next, err := dmi.Next()
	for err == nil && next != nil {
		var hit SearchHit
		visitErr := next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation":
				hit.ConversationID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			case "createdAt":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		hits = append(hits, hit)
		next, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	return hits, dmi.Aggregations().Count(), nil
}
