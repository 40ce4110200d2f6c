package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"market-chat/auth"
	"market-chat/conversations"
	"market-chat/domain/chat"
	"market-chat/internal"
	"market-chat/moderation"
	"market-chat/observability"
	"market-chat/projection"
	"market-chat/repositories"
	"market-chat/repositories/storage"
	"market-chat/runtime"
	"market-chat/session"
	"market-chat/transport/push"
	"market-chat/transport/rest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the client lifecycle, and centralizes error reporting.
// The pattern keeps 'defer' statements (database and index cleanup) running before exit and
// decouples initialization from the main entry point.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Local storage (BadgerDB history cache + Bluge search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	messageRepository := repositories.NewMessageRepository(db, log, config.CachedMessages)
	searchRepository := repositories.NewSearchRepository(writer, log, config.SearchPageSize)
	blocklistRepository := repositories.NewBlocklistRepository(db, log)

	// 3. Outbound content masking, fed from the persisted blocklist
	terms, err := blocklistRepository.LoadTerms()
	if err != nil {
		return fmt.Errorf("blocklist loading failed: %w", err)
	}
	maskRune, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	masker, err := moderation.NewMasker(terms, maskRune)
	if err != nil {
		return fmt.Errorf("masker setup failed: %w", err)
	}

	// 4. Transport, authenticated with a self-issued token
	signer := auth.NewSigner([]byte(config.AuthSecret))
	tokens := auth.NewSelfIssuedTokenSource(signer, config.LocalUserID, config.AuthTokenDuration)
	client, err := rest.NewClient(config.APIBaseURL, config.HTTPTimeout, tokens, log)
	if err != nil {
		return fmt.Errorf("transport setup failed: %w", err)
	}

	// 5. Conversation list, event routing, disk sink
	list := conversations.NewListController(client, config.LocalUserID, config.ConversationPageSize, log)
	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry()
	registry.SubscribeAll("disk", storage.NewDiskSink(messageRepository, &searchRepository, log))
	registry.SubscribeAll("monitor", monitor)
	router := runtime.NewRouter(list, registry, log)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Push pipeline, supervised so a dropped websocket redials
	if config.PushURL != "" {
		source := push.NewWSSource(config.PushURL, tokens, log)
		sup := runtime.NewSupervisor(log).
			Add(source, runtime.NewPushWorker(source, router, log))
		go sup.Run(ctx)
		defer sup.Stop()
	}

	// 8. Debug inspector over the history cache
	if config.DebugPort > 0 {
		go internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, monitor.Stats)
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 9. Initial screen: the conversation list
	if _, err := list.LoadMore(ctx); err != nil {
		return fmt.Errorf("conversation list loading failed: %w", err)
	}
	rows := list.Conversations()
	renderConversations(rows, config.LocalUserID)
	if len(rows) == 0 {
		log.Info("No conversations yet")
		<-ctx.Done()
		return nil
	}

	// 10. Open the most recent conversation and print its transcript
	conv := rows[0]
	sess, err := session.Open(conv, config.LocalUserID, session.Config{
		Transport: client,
		List:      list,
		Masker:    masker,
		Cache:     messageRepository,
		OnRemoteTyping: func(state chat.TypingState) {
			if state.IsTyping {
				color.Gray.Printf("%s is typing...\n", state.UserID)
			}
		},
		PageSize:    config.MessagePageSize,
		QuietPeriod: config.TypingQuietPeriod,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("session opening failed: %w", err)
	}
	router.Attach(sess)
	defer router.Detach(conv.ID)

	if _, err := sess.LoadOlder(ctx); err != nil {
		return fmt.Errorf("message history loading failed: %w", err)
	}
	sess.MarkOpened()
	renderTranscript(sess, config.LocalUserID)

	// 11. Stay alive for push traffic until interrupted
	<-ctx.Done()
	log.Info("Program stopped cleanly")
	return nil
}

func renderConversations(rows []chat.Conversation, localUserID string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Conversation", "Peer", "Last Message", "At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range rows {
		peer, _ := c.PeerOf(localUserID)
		id := c.ID
		if len(id) > 8 {
			id = id[:8]
		}
		table.Append([]string{
			id,
			peer,
			c.LastMessage.Content,
			c.LastMessage.CreatedAt.Local().Format("15:04:05"),
		})
	}
	table.Render()
}

func renderTranscript(sess *session.Session, localUserID string) {
	transcript := projection.NewTranscript(sess.Store(), time.Local)
	for _, day := range transcript.Days() {
		color.Bold.Println(day.Label)
		for _, m := range day.Messages {
			line := fmt.Sprintf("[%s] %s: %s",
				m.CreatedAt.Local().Format("15:04"), m.SenderID, m.Content)
			if m.SenderID == localUserID {
				color.Cyan.Println(line)
			} else {
				color.Green.Println(line)
			}
		}
	}
	if sess.RemoteTyping() {
		color.Gray.Println("typing...")
	}
}
