package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationMembership(t *testing.T) {
	t.Parallel()
	c := Conversation{ID: "c1", Members: []string{"alice", "bob", "carol"}, IsGroup: true, CreatedBy: "alice"}

	require.True(t, c.HasMember("bob"))
	require.False(t, c.HasMember("dave"))
	require.Equal(t, []string{"alice", "carol"}, c.Peers("bob"))
	require.True(t, c.IsCreator("alice"))
	require.False(t, c.IsCreator("bob"))
}

func TestDirectConversationHasNoCreator(t *testing.T) {
	t.Parallel()
	c := Conversation{ID: "c1", Members: []string{"alice", "bob"}, CreatedBy: "alice"}
	require.False(t, c.IsCreator("alice"))
}
