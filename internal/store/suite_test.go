package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devaloi/socialchat/internal/domain"
)

// runStoreSuite exercises the Store contract against a fresh store per subtest.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and find conversation", func(t *testing.T) {
		s := open(t)
		c, err := s.CreateConversation(ctx, domain.Conversation{
			Name: "friends", Members: []string{"carol", "alice", "bob"}, IsGroup: true, CreatedBy: "carol",
		})
		require.NoError(t, err)
		require.NotEmpty(t, c.ID)
		require.False(t, c.CreatedAt.IsZero())

		got, err := s.FindConversation(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, "friends", got.Name)
		require.True(t, got.IsGroup)
		require.Equal(t, "carol", got.CreatedBy)
		require.Equal(t, []string{"carol", "alice", "bob"}, got.Members)
	})

	t.Run("missing conversation", func(t *testing.T) {
		s := open(t)
		_, err := s.FindConversation(ctx, "nope")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("find direct conversation", func(t *testing.T) {
		s := open(t)
		direct, err := s.CreateConversation(ctx, domain.Conversation{Members: []string{"alice", "bob"}})
		require.NoError(t, err)
		_, err = s.CreateConversation(ctx, domain.Conversation{
			Name: "g", Members: []string{"alice", "bob", "carol"}, IsGroup: true, CreatedBy: "alice",
		})
		require.NoError(t, err)

		got, err := s.FindDirectConversation(ctx, "bob", "alice")
		require.NoError(t, err)
		require.Equal(t, direct.ID, got.ID)

		_, err = s.FindDirectConversation(ctx, "alice", "carol")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("membership edits", func(t *testing.T) {
		s := open(t)
		c, err := s.CreateConversation(ctx, domain.Conversation{
			Name: "g", Members: []string{"alice", "bob"}, IsGroup: true, CreatedBy: "alice",
		})
		require.NoError(t, err)

		require.NoError(t, s.AddMembers(ctx, c.ID, []string{"carol", "bob", "dave"}))
		got, err := s.FindConversation(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "bob", "carol", "dave"}, got.Members)

		require.NoError(t, s.RemoveMember(ctx, c.ID, "bob"))
		got, err = s.FindConversation(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "carol", "dave"}, got.Members)

		mine, err := s.ListConversations(ctx, "carol")
		require.NoError(t, err)
		require.Len(t, mine, 1)
		none, err := s.ListConversations(ctx, "bob")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("messages oldest first and isolated", func(t *testing.T) {
		s := open(t)
		c1, err := s.CreateConversation(ctx, domain.Conversation{Members: []string{"alice", "bob"}})
		require.NoError(t, err)
		c2, err := s.CreateConversation(ctx, domain.Conversation{Members: []string{"alice", "carol"}})
		require.NoError(t, err)

		for _, text := range []string{"msg1", "msg2", "msg3"} {
			m, err := s.CreateMessage(ctx, c1.ID, "alice", text)
			require.NoError(t, err)
			require.NotEmpty(t, m.ID)
			require.Equal(t, c1.ID, m.ConversationID)
		}
		_, err = s.CreateMessage(ctx, c2.ID, "carol", "other")
		require.NoError(t, err)

		history, err := s.History(ctx, c1.ID, 50)
		require.NoError(t, err)
		require.Len(t, history, 3)
		require.Equal(t, "msg1", history[0].Text)
		require.Equal(t, "msg3", history[2].Text)
		require.Equal(t, "alice", history[0].SenderID)

		empty, err := s.History(ctx, "none", 50)
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}
