package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 9, 0, 0, time.UTC)

	assert.Equal(t, "hello world", DeriveTitle("  hello world  ", now))

	long := strings.Repeat("a", 80)
	assert.Equal(t, strings.Repeat("a", TitleMaxLength), DeriveTitle(long, now))

	assert.Equal(t, "Chat 2024-03-14 15:09", DeriveTitle("   ", now))
	assert.Equal(t, "Chat 2024-03-14 15:09", DeriveTitle("", now))
}

func TestMetadataUpdateIsZero(t *testing.T) {
	assert.True(t, MetadataUpdate{}.IsZero())

	title := "renamed"
	assert.False(t, MetadataUpdate{Title: &title}.IsZero())

	paths := NewPathSet("/src")
	assert.False(t, MetadataUpdate{IncludedPaths: &paths}.IsZero())
}

func TestParseConversationID(t *testing.T) {
	id := NewConversationID()
	parsed, err := ParseConversationID(id.String())
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseConversationID("not-a-uuid")
	assert.Error(t, err)
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("system").Valid())

	assert.Equal(t, "User", RoleUser.Capitalized())
	assert.Equal(t, "Assistant", RoleAssistant.Capitalized())
}
