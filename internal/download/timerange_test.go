package download_test

import (
	"testing"

	"github.com/hbomb79/Selene/internal/download"
	"github.com/stretchr/testify/assert"
)

func Test_ParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		summary   string
		input     string
		expected  int
		shouldErr bool
	}{
		{summary: "full hours:minutes:seconds", input: "01:02:03", expected: 3723},
		{summary: "minutes:seconds", input: "02:05", expected: 125},
		{summary: "bare seconds", input: "45", expected: 45},
		{summary: "zero", input: "0", expected: 0},
		{summary: "surrounding whitespace tolerated", input: " 1 : 30 ", expected: 90},
		{summary: "non-numeric component", input: "abc", shouldErr: true},
		{summary: "partially numeric", input: "01:xx:03", shouldErr: true},
		{summary: "negative component", input: "-5", shouldErr: true},
		{summary: "too many components", input: "1:2:3:4", shouldErr: true},
		{summary: "empty string", input: "", shouldErr: true},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			t.Parallel()

			seconds, err := download.ParseTimestamp(test.input)
			if test.shouldErr {
				var formatErr *download.ErrTimeFormat
				assert.ErrorAs(t, err, &formatErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, seconds)
		})
	}
}
