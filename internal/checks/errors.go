package checks

import (
	"errors"
	"fmt"

	"rankwatch/internal/db"
)

var (
	ErrKeywordNotFound    = db.ErrKeywordNotFound
	ErrKeywordInFlight    = errors.New("keyword has a check in progress")
	ErrLiveCheckThrottled = errors.New("live check requested too soon")
	ErrEmptyScope         = errors.New("a user, project or keyword list is required")
)

// ThrottledError reports a live check refused by the minimum interval.
type ThrottledError struct {
	HoursSinceLast float64
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: last live check %.1fh ago", ErrLiveCheckThrottled, e.HoursSinceLast)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrLiveCheckThrottled
}
