package timegetter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

type TimeGetterTestSuite struct {
	suite.Suite
	tg *TimeGetter
}

func (s *TimeGetterTestSuite) SetupTest() {
	s.tg = NewTimeGetter().(*TimeGetter)
}

func (s *TimeGetterTestSuite) TestGetTime() {
	before := time.Now().Truncate(time.Millisecond)
	result := s.tg.GetTime()
	after := time.Now()

	s.NotZero(result)
	s.False(result.Before(before))
	s.False(result.After(after))
	s.Equal(time.UTC, result.Location())
}

// The returned time survives a round trip through a stored date.
func (s *TimeGetterTestSuite) TestMillisecondPrecision() {
	result := s.tg.GetTime()
	s.Zero(result.Nanosecond() % int(time.Millisecond))
	s.True(result.Equal(value.DateTimeOf(result).Time()))
}

func TestTimeGetterTestSuite(t *testing.T) {
	suite.Run(t, new(TimeGetterTestSuite))
}
