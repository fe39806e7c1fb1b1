package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUserText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text untouched", in: "Привет, как дела?", want: "Привет, как дела?"},
		{name: "markup stripped", in: "<b>привет</b> <script>x</script>мир", want: "привет мир"},
		{name: "control chars dropped", in: "при\x00вет\x07", want: "привет"},
		{name: "newline and tab preserved", in: "a\n\tb", want: "a\n\tb"},
		{name: "spaces collapsed", in: "a    b", want: "a b"},
		{name: "excess blank lines collapsed", in: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "trimmed", in: "  привет  ", want: "привет"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeUserText(tt.in))
		})
	}
}
