// Command gen_test_data seeds the local BadgerDB cache and Bluge index
// with fake conversation history, so the messenger and the inspection
// tools have something to show without a backend.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"

	"market-chat/domain/chat"
	"market-chat/repositories"
)

var sampleLines = []string{
	"Hi, is the bike still available?",
	"Yes it is, are you interested?",
	"Could you do 80 for it?",
	"I can meet you at the station tomorrow",
	"Deal, see you at 6pm",
	"Thanks again, the handlebar is great",
}

func main() {
	badgerPath := "./test_data/badger"
	blugePath := "./test_data/bluge"
	log := logs.GetLoggerFromString("info")

	db, err := badger.Open(badger.DefaultOptions(badgerPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Badger opening failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(blugePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bluge opening failed: %v\n", err)
		os.Exit(1)
	}
	defer writer.Close()

	messageRepository := repositories.NewMessageRepository(db, log, nil)
	searchRepository := repositories.NewSearchRepository(writer, log, 10)

	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: [2]string{"alice", "bob"},
		CreatedAt:    time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := messageRepository.StoreConversation(conv); err != nil {
		fmt.Fprintf(os.Stderr, "Conversation seeding failed: %v\n", err)
		os.Exit(1)
	}

	base := conv.CreatedAt
	for i, line := range sampleLines {
		sender, receiver := "alice", "bob"
		if i%2 == 1 {
			sender, receiver = "bob", "alice"
		}
		msg := chat.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			SenderID:       sender,
			ReceiverID:     receiver,
			Content:        line,
			CreatedAt:      base.Add(time.Duration(i) * 10 * time.Minute),
			Status:         chat.StatusSeen,
		}
		if err := messageRepository.StoreMessage(msg); err != nil {
			fmt.Fprintf(os.Stderr, "Message seeding failed: %v\n", err)
			os.Exit(1)
		}
		if err := searchRepository.IndexMessage(msg); err != nil {
			fmt.Fprintf(os.Stderr, "Index seeding failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Seeded conversation %s with %d messages under %s\n",
		conv.ID, len(sampleLines), badgerPath)
}
