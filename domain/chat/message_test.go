package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_NewMessage_Seeds_Sender_Receipt(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	msg := NewMessage("alice", "hello", KindText, at)

	req.NotEmpty(msg.ID)
	req.Equal(KindText, msg.Kind)
	req.True(msg.ReadByUser("alice"))
	req.False(msg.ReadByUser("bob"))
	req.Equal(at, msg.CreatedAt)
	req.Nil(msg.EditedAt)
}

func Test_NewMessage_Defaults_To_Text(t *testing.T) {
	req := require.New(t)

	msg := NewMessage("alice", "hello", "", time.Now().UTC())
	req.Equal(KindText, msg.Kind)
}

func Test_MarkReadBy_Adds_One_Receipt_Per_User(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	msg := NewMessage("alice", "hello", KindText, at)

	req.True(msg.MarkReadBy("bob", at.Add(time.Second)))
	req.False(msg.MarkReadBy("bob", at.Add(time.Minute)))

	req.Len(msg.ReadBy, 2)
	// The first receipt wins, replays never touch the timestamp
	req.Equal(at.Add(time.Second), msg.ReadBy[1].ReadAt)
}
