package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/search"
)

func Test_Search_Hits_Serialize_With_CamelCase_Keys(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC().Truncate(time.Second)

	raw, err := json.Marshal(toHitResponse(search.Hit{
		MessageID: "msg-1",
		Room:      "room-1",
		SenderID:  "alice",
		Content:   "hello",
		CreatedAt: at,
	}))
	req.NoError(err)

	var keys map[string]any
	req.NoError(json.Unmarshal(raw, &keys))
	req.Equal("msg-1", keys["messageId"])
	req.Equal("room-1", keys["roomId"])
	req.Equal("alice", keys["senderId"])
	req.Equal("hello", keys["content"])
	req.Contains(keys, "createdAt")
	req.NotContains(keys, "MessageID")
}
