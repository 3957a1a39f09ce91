package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Censor_Replaces_Forbidden_Word(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"flubber"}, '*')
	req.NoError(err)

	req.Equal("pure ******* nonsense", moderator.Censor("pure flubber nonsense"))
}

func Test_Censor_Is_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"flubber"}, '*')
	req.NoError(err)

	req.Equal("*******!", moderator.Censor("FlUbBeR!"))
}

func Test_Censor_Catches_Separated_Obfuscation(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"flubber"}, '*')
	req.NoError(err)

	// Separators inside the match are censored with it
	req.Equal("*************", moderator.Censor("f.l.u.b.b.e.r"))
	req.Equal("say *************", moderator.Censor("say f l u b b e r"))
}

func Test_Censor_Leaves_Clean_Content_Untouched(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"flubber"}, '*')
	req.NoError(err)

	content := "a perfectly polite sentence"
	req.Equal(content, moderator.Censor(content))
}

func Test_Censor_With_Empty_Word_List_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator(nil, '*')
	req.NoError(err)

	req.Equal("anything goes", moderator.Censor("anything goes"))
}

func Test_Censor_Multiple_Words(t *testing.T) {
	req := require.New(t)
	moderator, err := NewModerator([]string{"rats", "darn"}, '#')
	req.NoError(err)

	req.Equal("#### it, ####", moderator.Censor("darn it, rats"))
}
