package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/internal/domain"
)

func TestParseStructuredReply(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		doc, err := parseStructuredReply(`{"title": "The Fox", "paragraph1": "Once upon a time."}`)
		require.NoError(t, err)
		assert.Equal(t, "The Fox", doc["title"])
		assert.Equal(t, "Once upon a time.", doc["paragraph1"])
	})

	t.Run("fenced reply", func(t *testing.T) {
		reply := "Here is the story:\n```json\n{\"title\": \"The Fox\", \"paragraph1\": \"Once.\"}\n```\n"
		doc, err := parseStructuredReply(reply)
		require.NoError(t, err)
		assert.Equal(t, "The Fox", doc["title"])
	})

	t.Run("no object", func(t *testing.T) {
		_, err := parseStructuredReply("sorry, I cannot help with that")
		assert.ErrorIs(t, err, domain.ErrStructuringFailed)
	})

	t.Run("nested values rejected", func(t *testing.T) {
		_, err := parseStructuredReply(`{"title": {"en": "The Fox"}}`)
		assert.ErrorIs(t, err, domain.ErrStructuringFailed)
	})
}
