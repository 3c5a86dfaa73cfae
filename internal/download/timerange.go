package download

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrTimeFormat indicates a clip timestamp could not be understood. Callers
// in this package treat it as "no clipping requested" rather than failing
// the job.
type ErrTimeFormat struct {
	Input string
}

func (err *ErrTimeFormat) Error() string {
	return fmt.Sprintf("invalid time format %q, expected H:MM:SS, MM:SS or SS", err.Input)
}

// ParseTimestamp converts a human time string (H:MM:SS, MM:SS or SS) into
// whole seconds.
func ParseTimestamp(input string) (int, error) {
	parts := strings.Split(input, ":")
	if len(parts) > 3 {
		return 0, &ErrTimeFormat{Input: input}
	}

	total := 0
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 {
			return 0, &ErrTimeFormat{Input: input}
		}

		total = total*60 + value
	}

	return total, nil
}
