package dedup

import (
	"context"
	"fmt"
)

// LatestVersion returns the version of the most recent commit of t.
func LatestVersion(ctx context.Context, t Table) (Version, error) {
	history, err := t.History(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read table history: %w", err)
	}
	if len(history) == 0 {
		return 0, &NotFoundError{What: "table history"}
	}
	return history[0].Version, nil
}
