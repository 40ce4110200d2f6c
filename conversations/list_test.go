package conversations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"market-chat/domain/chat"
	"market-chat/mocks"
)

const localUser = "bob"

func conversation(id, peer string, lastAt time.Time) chat.Conversation {
	return chat.Conversation{
		ID:           id,
		Participants: [2]string{localUser, peer},
		LastMessage: chat.LastMessage{
			Content:   "last in " + id,
			SenderID:  peer,
			CreatedAt: lastAt,
		},
	}
}

func incoming(convID, sender string, at time.Time) chat.Message {
	return chat.Message{
		ID:             convID + "-" + at.Format("150405"),
		ConversationID: convID,
		SenderID:       sender,
		ReceiverID:     localUser,
		Content:        "hello from " + sender,
		CreatedAt:      at,
	}
}

func TestListController_LoadMore_Pagination(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	fullPage := make([]chat.Conversation, 20)
	for i := range fullPage {
		fullPage[i] = conversation(fmt.Sprintf("conv-%02d", i), fmt.Sprintf("peer-%02d", i),
			base.Add(-time.Duration(i)*time.Hour))
	}
	shortPage := []chat.Conversation{
		conversation("conv-20", "peer-20", base.Add(-30*time.Hour)),
	}

	gomock.InOrder(
		transport.EXPECT().
			FetchConversations(gomock.Any(), localUser, 1, 20).
			Return(chat.ConversationPage{Conversations: fullPage}, nil),
		transport.EXPECT().
			FetchConversations(gomock.Any(), localUser, 2, 20).
			Return(chat.ConversationPage{Conversations: shortPage}, nil),
	)

	l := NewListController(transport, localUser, 20, nil)
	ctx := context.Background()

	res, err := l.LoadMore(ctx)
	req.NoError(err)
	req.True(res.HasMore)

	res, err = l.LoadMore(ctx)
	req.NoError(err)
	req.False(res.HasMore)
	req.Len(l.Conversations(), 21)

	// Exhausted: no further fetch.
	res, err = l.LoadMore(ctx)
	req.NoError(err)
	req.False(res.HasMore)
}

func TestListController_LoadMore_NoDuplicates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c1 := conversation("conv-1", "alice", base)
	c2 := conversation("conv-2", "carol", base.Add(-time.Hour))

	// conv-1 shows up again on page 2 because the list shifted
	// server-side between the two fetches.
	gomock.InOrder(
		transport.EXPECT().
			FetchConversations(gomock.Any(), localUser, 1, 2).
			Return(chat.ConversationPage{Conversations: []chat.Conversation{c1, c2}}, nil),
		transport.EXPECT().
			FetchConversations(gomock.Any(), localUser, 2, 2).
			Return(chat.ConversationPage{Conversations: []chat.Conversation{c1}}, nil),
	)

	l := NewListController(transport, localUser, 2, nil)
	ctx := context.Background()

	_, err := l.LoadMore(ctx)
	req.NoError(err)
	_, err = l.LoadMore(ctx)
	req.NoError(err)

	ids := lo.Map(l.Conversations(), func(c chat.Conversation, _ int) string { return c.ID })
	req.Equal([]string{"conv-1", "conv-2"}, ids)
}

func TestListController_UpsertFromMessage_MovesToFront(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c1 := conversation("conv-1", "alice", base)
	c2 := conversation("conv-2", "carol", base.Add(-time.Hour))

	transport.EXPECT().
		FetchConversations(gomock.Any(), localUser, 1, 20).
		Return(chat.ConversationPage{Conversations: []chat.Conversation{c1, c2}}, nil)

	l := NewListController(transport, localUser, 20, nil)
	ctx := context.Background()
	_, err := l.LoadMore(ctx)
	req.NoError(err)

	msg := incoming("conv-2", "carol", base.Add(time.Minute))
	req.NoError(l.UpsertFromMessage(ctx, msg))

	got := l.Conversations()
	req.Equal("conv-2", got[0].ID)
	req.Equal(msg.Content, got[0].LastMessage.Content)
	req.Equal(msg.CreatedAt, got[0].LastMessage.CreatedAt)
}

func TestListController_UpsertFromMessage_StaleMessageIgnored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c1 := conversation("conv-1", "alice", base)
	c2 := conversation("conv-2", "carol", base.Add(-time.Hour))

	transport.EXPECT().
		FetchConversations(gomock.Any(), localUser, 1, 20).
		Return(chat.ConversationPage{Conversations: []chat.Conversation{c1, c2}}, nil)

	l := NewListController(transport, localUser, 20, nil)
	ctx := context.Background()
	_, err := l.LoadMore(ctx)
	req.NoError(err)

	// A late-arriving push of an old conv-2 message must not reorder.
	stale := incoming("conv-2", "carol", base.Add(-2*time.Hour))
	req.NoError(l.UpsertFromMessage(ctx, stale))

	got := l.Conversations()
	req.Equal("conv-1", got[0].ID)
	req.Equal("last in conv-2", got[1].LastMessage.Content)
}

func TestListController_UpsertFromMessage_UnknownConversationFetched(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	fresh := conversation("conv-9", "dave", time.Time{})

	transport.EXPECT().
		GetConversation(gomock.Any(), "conv-9").
		Return(fresh, nil).
		Times(1)

	l := NewListController(transport, localUser, 20, nil)
	ctx := context.Background()

	msg := incoming("conv-9", "dave", base)
	req.NoError(l.UpsertFromMessage(ctx, msg))
	// Duplicate push for the same new conversation: no second fetch
	// thanks to the index, no duplicate entry.
	req.NoError(l.UpsertFromMessage(ctx, msg))

	got := l.Conversations()
	req.Len(got, 1)
	req.Equal("conv-9", got[0].ID)
	req.Equal(msg.Content, got[0].LastMessage.Content)
}

func TestListController_FindOrCreate_Deterministic(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	created := chat.Conversation{
		ID:           "conv-ab",
		Participants: [2]string{"alice", localUser},
	}
	// One server call no matter how many lookups follow.
	transport.EXPECT().
		CreateConversation(gomock.Any(), gomock.Any()).
		Return(created, nil).
		Times(1)

	l := NewListController(transport, localUser, 20, nil)
	ctx := context.Background()

	first, err := l.FindOrCreate(ctx, localUser, "alice")
	req.NoError(err)

	// Reversed argument order resolves to the same conversation.
	second, err := l.FindOrCreate(ctx, "alice", localUser)
	req.NoError(err)
	req.Equal(first.ID, second.ID)
	req.Len(l.Conversations(), 1)
}
