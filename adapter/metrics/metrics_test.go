package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	reg *prometheus.Registry
	m   *Prometheus
}

func (s *MetricsTestSuite) SetupTest() {
	var err error
	s.reg = prometheus.NewRegistry()
	s.m, err = NewPrometheus(s.reg)
	s.Require().NoError(err)
}

func (s *MetricsTestSuite) TestObserve() {
	s.m.Observe("users", "insert", time.Now(), nil)
	s.m.Observe("users", "insert", time.Now(), nil)
	s.m.Observe("users", "insert", time.Now(), errors.New("boom"))

	s.Equal(2.0, testutil.ToFloat64(s.m.Operations.WithLabelValues("users", "insert", "ok")))
	s.Equal(1.0, testutil.ToFloat64(s.m.Operations.WithLabelValues("users", "insert", "error")))
	s.Equal(2, testutil.CollectAndCount(s.m.Operations))
}

func (s *MetricsTestSuite) TestDoubleRegistration() {
	_, err := NewPrometheus(s.reg)
	s.Error(err)
}

func (s *MetricsTestSuite) TestUnregistered() {
	m, err := NewPrometheus(nil)
	s.NoError(err)
	s.NotPanics(func() { m.Observe("a", "find", time.Now(), nil) })
	s.NotPanics(func() { NewNop().Observe("a", "find", time.Now(), nil) })
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}
