package ratelimit

import (
	"context"

	"github.com/upb/auth-service/internal/observability"
	"go.uber.org/zap"
)

// Result is an admission decision together with the rule that produced it
type Result struct {
	Decision
	Rule     Rule
	Exempt   bool
	Degraded bool
}

// Service applies path rules to the limiter and owns the fail-open policy:
// when Redis cannot be reached the request is admitted and logged.
type Service struct {
	limiter *Limiter
	rules   *Rules
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a new rate limit service
func NewService(limiter *Limiter, rules *Rules, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{limiter: limiter, rules: rules, metrics: metrics, logger: logger}
}

// Check decides whether subject may call path now. path selects the rule;
// route is the class the quota is counted against, such as
// /api/v1/users/{id}/sessions, and defaults to path.
func (s *Service) Check(ctx context.Context, subject, path, route string) Result {
	if s.rules.Exempt(path) {
		return Result{Exempt: true, Decision: Decision{Allowed: true}}
	}
	if route == "" {
		route = path
	}

	rule := s.rules.Match(path)
	d, err := s.limiter.Allow(ctx, rule.key(subject, route), rule.Limit, rule.Window)
	if err != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("rate limiter unavailable, admitting request",
			zap.String("rule", rule.Name),
			zap.String("route", route),
			zap.Error(err),
		)
		s.metrics.RateLimitDecision(rule.Name, observability.OutcomeDegraded)
		return Result{
			Rule:     rule,
			Degraded: true,
			Decision: Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit},
		}
	}

	outcome := observability.OutcomeAllowed
	if !d.Allowed {
		outcome = observability.OutcomeRejected
	}
	s.metrics.RateLimitDecision(rule.Name, outcome)
	return Result{Decision: d, Rule: rule}
}
