package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommentID_RoundTrip verifies composite IDs split back into their parts.
func TestCommentID_RoundTrip(t *testing.T) {
	channelID, messageID, err := SplitCommentID(CommentID("100", "200"))
	require.NoError(t, err)
	assert.Equal(t, "100", channelID)
	assert.Equal(t, "200", messageID)

	for _, bad := range []string{"", "100", ":200", "100:", "100200"} {
		_, _, err := SplitCommentID(bad)
		assert.Error(t, err, bad)
	}
}

// TestCommentFromMessage verifies how thread messages map onto parent comments.
func TestCommentFromMessage(t *testing.T) {
	t.Run("no reference is top-level", func(t *testing.T) {
		c := commentFromMessage(&discordgo.Message{ID: "5", ChannelID: "9", GuildID: "1", Content: "!thanks"}, "9")
		assert.True(t, c.ParentIsPost)
		assert.Equal(t, "9:5", c.ID)
		assert.Equal(t, "!thanks", c.Body)
		assert.Equal(t, "https://discord.com/channels/1/9/5", c.Permalink)
	})

	t.Run("reply to starter message is top-level", func(t *testing.T) {
		c := commentFromMessage(&discordgo.Message{
			ID: "5", ChannelID: "9",
			MessageReference: &discordgo.MessageReference{MessageID: "9", ChannelID: "9"},
		}, "9")
		assert.True(t, c.ParentIsPost)
	})

	t.Run("reply to a message", func(t *testing.T) {
		c := commentFromMessage(&discordgo.Message{
			ID: "5", ChannelID: "9",
			MessageReference: &discordgo.MessageReference{MessageID: "7"},
		}, "9")
		assert.False(t, c.ParentIsPost)
		assert.Equal(t, "9:7", c.ParentID)
	})
}

// TestTagNames verifies applied tag IDs resolve to names and unknown IDs are dropped.
func TestTagNames(t *testing.T) {
	available := []discordgo.ForumTag{{ID: "1", Name: "Solved"}, {ID: "2", Name: "Meta"}}
	assert.Equal(t, []string{"Meta", "Solved"}, tagNames(available, []string{"2", "3", "1"}))
	assert.Nil(t, tagNames(available, nil))
}

// TestFindTag verifies tags are matched by ID first and by name otherwise.
func TestFindTag(t *testing.T) {
	available := []discordgo.ForumTag{{ID: "1", Name: "Solved"}, {ID: "2", Name: "Meta"}}

	tag, ok := findTag(available, "2", "Solved")
	require.True(t, ok)
	assert.Equal(t, "Meta", tag.Name)

	tag, ok = findTag(available, "", "solved")
	require.True(t, ok)
	assert.Equal(t, "1", tag.ID)

	_, ok = findTag(available, "3", "")
	assert.False(t, ok)
	_, ok = findTag(available, "", "")
	assert.False(t, ok)
}
