package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
)

func TestDependencyHealthRepositoryCollectSuccess(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:     "postgres",
			Critical: true,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(10 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Name:  "redis",
			Check: func(context.Context) error { return nil },
		},
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks,
		WithDependencyClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("expected check %s to be ok, got %s", name, check.Status)
		}
		if check.CheckedAt != now {
			t.Fatalf("expected check %s checkedAt %s, got %s", name, now, check.CheckedAt)
		}
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryNonCriticalFailureDegrades(t *testing.T) {
	expectedErr := errors.New("boom")
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "postgres", Critical: true, Check: func(context.Context) error { return nil }},
		{Name: "pubsub", Check: func(context.Context) error { return expectedErr }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
	check := report.Checks["pubsub"]
	if check.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected pubsub status degraded, got %s", check.Status)
	}
	if check.Error != expectedErr.Error() {
		t.Fatalf("expected error %q, got %q", expectedErr.Error(), check.Error)
	}
}

func TestDependencyHealthRepositoryCriticalTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{
			Name:     "firestore",
			Critical: true,
			Timeout:  5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(200 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	check := report.Checks["firestore"]
	if check.Status != domain.HealthStatusError {
		t.Fatalf("expected firestore status error, got %s", check.Status)
	}
	if check.Detail != "timeout" {
		t.Fatalf("expected detail timeout, got %s", check.Detail)
	}
}

func TestNewDependencyHealthRepositoryRejectsIncompleteChecks(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatalf("expected error for empty check set")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "postgres"}}); err == nil {
		t.Fatalf("expected error for missing check function")
	}
}

func TestCombineHealthMergesReports(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "postgres", Critical: true, Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runtime, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "redis", Check: func(context.Context) error { return errors.New("dial refused") }},
	}, WithDependencyClock(func() time.Time { return now.Add(time.Second) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := CombineHealth(store, nil, runtime).Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected two checks, got %d", len(report.Checks))
	}
	if report.Checks["postgres"].Status != domain.HealthStatusOK {
		t.Fatalf("expected postgres ok, got %s", report.Checks["postgres"].Status)
	}
	if report.Checks["redis"].Error != "dial refused" {
		t.Fatalf("expected redis error, got %q", report.Checks["redis"].Error)
	}
	if !report.GeneratedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("expected latest timestamp, got %s", report.GeneratedAt)
	}
}

func TestCombineHealthSingleRepository(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "memory", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if CombineHealth(nil, repo) != repo {
		t.Fatalf("expected the single repository to be returned as-is")
	}
}
