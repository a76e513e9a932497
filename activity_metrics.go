package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsActivitySink counts sign in and sign up outcomes
type MetricsActivitySink struct {
	signIn  *prometheus.CounterVec
	signUp  *prometheus.CounterVec
	signOut prometheus.Counter
}

// NewMetricsActivitySink registers its collectors with reg. A nil reg skips
// registration.
func NewMetricsActivitySink(reg prometheus.Registerer) (*MetricsActivitySink, error) {
	s := &MetricsActivitySink{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credentials",
			Name:      "signin_total",
			Help:      "Sign in attempts by result.",
		}, []string{"result", "reason"}),
		signUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credentials",
			Name:      "signup_total",
			Help:      "Registration attempts by result.",
		}, []string{"result", "reason"}),
		signOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "credentials",
			Name:      "signout_total",
			Help:      "Sessions signed out.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{s.signIn, s.signUp, s.signOut} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *MetricsActivitySink) Record(_ context.Context, event ActivityEvent) error {
	switch event.EventType {
	case ActivityEventSignInSuccess:
		s.signIn.WithLabelValues("success", "").Inc()
	case ActivityEventSignInFailure:
		s.signIn.WithLabelValues("failure", event.Reason).Inc()
	case ActivityEventSignUpSuccess:
		s.signUp.WithLabelValues("success", "").Inc()
	case ActivityEventSignUpFailure:
		s.signUp.WithLabelValues("failure", event.Reason).Inc()
	case ActivityEventSignOut:
		s.signOut.Inc()
	}
	return nil
}

// SignIn exposes the sign in counter, mostly for tests
func (s *MetricsActivitySink) SignIn() *prometheus.CounterVec { return s.signIn }

// SignUp exposes the sign up counter
func (s *MetricsActivitySink) SignUp() *prometheus.CounterVec { return s.signUp }
