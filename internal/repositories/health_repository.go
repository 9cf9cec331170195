package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/commerce/internal/domain"
)

const (
	defaultDependencyTimeout = 1500 * time.Millisecond
)

// DependencyCheck describes a dependency probe executed during readiness checks. A failing
// critical dependency (the order store) marks the whole report as error; other failures
// (event bus, idempotency cache) only degrade it.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Critical bool
	Check    func(context.Context) error
}

// DependencyHealthOption customises the behaviour of the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout overrides the default timeout applied when a check omits its own timeout.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a custom clock primarily for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository constructs a HealthRepository that evaluates the provided check set.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	var (
		mu      sync.Mutex
		results = make(map[string]domain.SystemHealthCheck, len(r.checks))
		worst   = domain.HealthStatusOK
	)

	// Probes never fail the group; each outcome is recorded in the report instead.
	var g errgroup.Group
	for _, check := range r.checks {
		check := check
		g.Go(func() error {
			result := r.probe(ctx, check)
			mu.Lock()
			defer mu.Unlock()
			results[check.Name] = result
			worst = worseStatus(worst, result.Status)
			return nil
		})
	}
	_ = g.Wait()

	return domain.SystemHealthReport{
		Status:      worst,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(checkCtx)
	end := r.now()
	if err == nil && checkCtx.Err() != nil {
		err = checkCtx.Err()
	}

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil {
		return result
	}

	result.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Detail = "cancelled"
	default:
		result.Detail = err.Error()
	}
	if check.Critical {
		result.Status = domain.HealthStatusError
	} else {
		result.Status = domain.HealthStatusDegraded
	}
	return result
}

func worseStatus(a, b string) string {
	rank := func(status string) int {
		switch status {
		case domain.HealthStatusError:
			return 2
		case domain.HealthStatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

type combinedHealthRepository struct {
	repos []HealthRepository
}

// CombineHealth merges several health repositories into one report. The store registry and
// the runtime dependencies (event bus, idempotency cache) each bring their own checks; a
// duplicate check name keeps the worse result.
func CombineHealth(repos ...HealthRepository) HealthRepository {
	filtered := make([]HealthRepository, 0, len(repos))
	for _, repo := range repos {
		if repo != nil {
			filtered = append(filtered, repo)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &combinedHealthRepository{repos: filtered}
}

func (c *combinedHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	merged := domain.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: make(map[string]domain.SystemHealthCheck),
	}
	for _, repo := range c.repos {
		report, err := repo.Collect(ctx)
		if err != nil {
			return domain.SystemHealthReport{}, err
		}
		merged.Status = worseStatus(merged.Status, report.Status)
		for name, check := range report.Checks {
			if existing, ok := merged.Checks[name]; ok && worseStatus(existing.Status, check.Status) == existing.Status {
				continue
			}
			merged.Checks[name] = check
		}
		if report.GeneratedAt.After(merged.GeneratedAt) {
			merged.GeneratedAt = report.GeneratedAt
		}
	}
	return merged, nil
}
