// Package timegetter contains the default [domain.TimeGetter] implementation.
package timegetter

import (
	"time"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

// TimeGetter implements [domain.TimeGetter].
type TimeGetter struct{}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter() domain.TimeGetter {
	return &TimeGetter{}
}

// GetTime implements [domain.TimeGetter]. The result is in UTC and truncated
// to milliseconds, the precision of stored dates.
func (t *TimeGetter) GetTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
