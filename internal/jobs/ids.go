package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobIDSuffixLen = 9

// newJobID returns "job_{unix millis}_{9 random chars}".
func newJobID(now time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("jobs: generate id: %w", err)
	}
	suffix := strings.ReplaceAll(id.String(), "-", "")[:jobIDSuffixLen]
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), suffix), nil
}
