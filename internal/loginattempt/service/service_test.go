package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"adminguard/internal/loginattempt/models"
	"adminguard/internal/loginattempt/service"
	"adminguard/internal/loginattempt/service/mocks"
	"adminguard/internal/loginattempt/store"
	"adminguard/internal/security"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/requestcontext"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []security.Event
}

func (p *capturePublisher) Publish(_ context.Context, e security.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) ofType(t security.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type ServiceSuite struct {
	suite.Suite
	service   *service.Service
	metrics   *service.Metrics
	publisher *capturePublisher
	t0        time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.publisher = &capturePublisher{}
	s.metrics = service.NewMetrics(prometheus.NewRegistry())
	svc, err := service.New(store.NewInMemoryStore(),
		service.WithPublisher(s.publisher),
		service.WithMetrics(s.metrics),
		service.WithSuspiciousAccounts(3),
	)
	s.Require().NoError(err)
	s.service = svc
	s.t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(d))
}

func (s *ServiceSuite) fail(email string, d time.Duration) models.LockState {
	state, err := s.service.Record(s.at(d), email, "10.0.0.1", false, models.ReasonInvalidCredentials)
	s.Require().NoError(err)
	return state
}

func (s *ServiceSuite) TestFiveFailuresLockTheAccount() {
	const email = "ops@example.com"
	for i := range 4 {
		state := s.fail(email, time.Duration(i)*time.Minute)
		s.False(state.Locked)
	}
	state := s.fail(email, 4*time.Minute)
	s.True(state.Locked)
	s.Equal(s.t0.Add(34*time.Minute), state.LockedUntil)

	locked, until, err := s.service.IsLocked(s.at(10*time.Minute), "  OPS@example.com ")
	s.Require().NoError(err)
	s.True(locked)
	s.Equal(s.t0.Add(34*time.Minute), until)

	locked, _, err = s.service.IsLocked(s.at(34*time.Minute), email)
	s.Require().NoError(err)
	s.False(locked)

	s.Equal(1, s.publisher.ofType(security.EventAccountLocked))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Lockouts))
}

func (s *ServiceSuite) TestSuccessResetsTheStreak() {
	const email = "ops@example.com"
	for i := range 4 {
		s.fail(email, time.Duration(i)*time.Minute)
	}
	_, err := s.service.Record(s.at(4*time.Minute), email, "10.0.0.1", true, models.ReasonNone)
	s.Require().NoError(err)

	state := s.fail(email, 5*time.Minute)
	s.False(state.Locked)

	count, err := s.service.RecentFailureCount(s.at(6*time.Minute), email, 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestLockedRejectionsDoNotExtendTheLock() {
	const email = "ops@example.com"
	for i := range 5 {
		s.fail(email, time.Duration(i)*time.Minute)
	}
	for i := range 10 {
		state, err := s.service.Record(s.at(time.Duration(10+i)*time.Minute), email, "10.0.0.1", false, models.ReasonAccountLocked)
		s.Require().NoError(err)
		s.True(state.Locked)
		s.Equal(5, state.Streak)
	}
	locked, until, err := s.service.IsLocked(s.at(20*time.Minute), email)
	s.Require().NoError(err)
	s.True(locked)
	s.Equal(s.t0.Add(34*time.Minute), until)
	s.Equal(1, s.publisher.ofType(security.EventAccountLocked))
}

func (s *ServiceSuite) TestSuspiciousSourceSignal() {
	for i := range 3 {
		_, err := s.service.Record(s.at(time.Duration(i)*time.Second), fmt.Sprintf("user%d@example.com", i), "203.0.113.66", false, models.ReasonInvalidCredentials)
		s.Require().NoError(err)
	}
	s.Equal(1, s.publisher.ofType(security.EventSuspiciousSource))

	// repeated failures against an already counted account stay quiet
	_, err := s.service.Record(s.at(5*time.Second), "user0@example.com", "203.0.113.66", false, models.ReasonInvalidCredentials)
	s.Require().NoError(err)
	s.Equal(1, s.publisher.ofType(security.EventSuspiciousSource))

	summary, err := s.service.FailuresBySource(s.at(10*time.Second), "203.0.113.66", 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(4, summary.Failures)
	s.Equal(3, summary.DistinctAccounts)

	sources, err := s.service.SuspiciousSources(s.at(10*time.Second), 15*time.Minute, 0)
	s.Require().NoError(err)
	s.Require().Len(sources, 1)
	s.Equal("203.0.113.66", sources[0].SourceAddress)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := service.New(store.NewInMemoryStore(), service.WithPolicy(models.Policy{Threshold: 0, Window: time.Minute, Duration: time.Minute}))
	if err == nil {
		t.Fatal("expected invalid policy to be rejected")
	}
	if _, err := service.New(nil); err == nil {
		t.Fatal("expected nil store to be rejected")
	}
}

func TestRecordFailsClosedWhenStoreIsDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	svc, err := service.New(st)
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Record(context.Background(), "ops@example.com", "10.0.0.1", false, models.ReasonInvalidCredentials)
	if !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestEveryFailureReasonRunsTheSameReads(t *testing.T) {
	reasons := []models.FailureReason{
		models.ReasonInvalidCredentials,
		models.ReasonAccountLocked,
		models.ReasonAccountInactive,
		models.ReasonInvalidMFA,
	}
	for _, reason := range reasons {
		t.Run(string(reason), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			st := mocks.NewMockStore(ctrl)
			gomock.InOrder(
				st.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil),
				st.EXPECT().ListByEmailSince(gomock.Any(), "ops@example.com", gomock.Any()).Return(nil, nil),
				st.EXPECT().ListFailuresBySourceSince(gomock.Any(), "10.0.0.1", gomock.Any()).Return(nil, nil),
			)

			svc, err := service.New(st)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := svc.Record(context.Background(), "ops@example.com", "10.0.0.1", false, reason); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestIsLockedFailsClosedOnReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().ListByEmailSince(gomock.Any(), "ops@example.com", gomock.Any()).Return(nil, errors.New("timeout"))

	svc, err := service.New(st)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = svc.IsLocked(context.Background(), "ops@example.com")
	if !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
