// Package storage adapts the repositories to the event plumbing.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"market-chat/domain/event"
	"market-chat/repositories"
)

// DiskSink writes routed messages to the local cache and the search
// index. It can be subscribed to the runtime registry so persistence
// happens regardless of which screen is open.
type DiskSink struct {
	repository repositories.IMessageRepository
	search     *repositories.SearchRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, search *repositories.SearchRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, search: search, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		if err := d.repository.StoreMessage(evt.Message); err != nil {
			return err
		}
		if d.search != nil {
			return d.search.IndexMessage(evt.Message)
		}
		return nil
	default:
		d.log.Debug(fmt.Sprintf("Not persisted event : %v", e.Kind()))
		return nil
	}
}
