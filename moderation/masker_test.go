package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMasker(t *testing.T, terms ...string) *Masker {
	t.Helper()
	m, err := NewMasker(terms, '*')
	require.NoError(t, err)
	return m
}

func TestMasker_Apply(t *testing.T) {
	m := newTestMasker(t, "whatsapp", "paypal")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "clean text untouched",
			in:   "is the blue one still available?",
			want: "is the blue one still available?",
		},
		{
			name: "plain match masked",
			in:   "contact me on whatsapp please",
			want: "contact me on ******** please",
		},
		{
			name: "case and leet folded",
			in:   "ping me on Wh4ts4pp",
			want: "ping me on ********",
		},
		{
			name: "separator evasion masked",
			in:   "pay via p.a.y.p.a.l only",
			want: "pay via *********** only",
		},
		{
			name: "multiple terms in one message",
			in:   "whatsapp or paypal works",
			want: "******** or ****** works",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, m.Apply(tt.in))
		})
	}
}

func TestMasker_PreservesLength(t *testing.T) {
	req := require.New(t)
	m := newTestMasker(t, "whatsapp")

	in := "reach me: whatsapp now"
	out := m.Apply(in)
	req.Equal(len([]rune(in)), len([]rune(out)))
}

func TestMasker_EmptyTermList(t *testing.T) {
	req := require.New(t)
	m, err := NewMasker(nil, '*')
	req.NoError(err)
	req.Equal("anything goes", m.Apply("anything goes"))
}
