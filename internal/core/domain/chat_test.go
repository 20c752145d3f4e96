package domain

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^(conv|msg)_(\d+)_([0-9a-z]{9})$`)

func TestNewConversationID_Format(t *testing.T) {
	now := time.Date(2024, 4, 30, 15, 0, 0, 0, time.UTC)

	id := NewConversationID(now)
	m := idPattern.FindStringSubmatch(string(id))
	require.NotNil(t, m, "id %q does not match expected shape", id)
	assert.Equal(t, "conv", m[1])

	ms, err := strconv.ParseInt(m[2], 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), ms)
}

func TestNewMessageID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[MessageID]bool)
	for i := 0; i < 100; i++ {
		id := NewMessageID(now)
		assert.True(t, strings.HasPrefix(string(id), "msg_"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
