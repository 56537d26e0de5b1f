package di

import (
	"testing"

	"go.uber.org/dig"
)

// Test types for dependency injection
type store struct {
	Name string
}

type notifier struct {
	Target string
}

type runner struct {
	Store    *store
	Notifier *notifier
	Env      string
}

func TestNew_ProvidesEnvironment(t *testing.T) {
	container, err := New("test-env")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var actualEnv string
	err = container.Invoke(func(env string) {
		actualEnv = env
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}

	if actualEnv != "test-env" {
		t.Errorf("Environment = %v, want %v", actualEnv, "test-env")
	}
}

func TestNew_DuplicateProvider(t *testing.T) {
	_, err := New("dev",
		WithProviders(
			func() *store { return &store{Name: "one"} },
			func() *store { return &store{Name: "two"} },
		),
	)
	if err == nil {
		t.Error("New() should return error when providing duplicate types")
	}
}

func TestMustGet(t *testing.T) {
	t.Run("successfully retrieves dependency", func(t *testing.T) {
		container, err := New("dev",
			WithProviders(func() *store {
				return &store{Name: "test-store"}
			}),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		s := MustGet[*store](container)
		if s == nil || s.Name != "test-store" {
			t.Errorf("MustGet() = %+v, want Name %q", s, "test-store")
		}
	})

	t.Run("panics when dependency not found", func(t *testing.T) {
		container, err := New("dev")
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		defer func() {
			if r := recover(); r == nil {
				t.Error("MustGet() did not panic")
			}
		}()

		_ = MustGet[*store](container)
	})
}

func TestDependencyInjection(t *testing.T) {
	container, err := New("prod",
		WithProviders(
			func() *store { return &store{Name: "prod-store"} },
			func() *notifier { return &notifier{Target: "slack"} },
			func(s *store, n *notifier, env string) *runner {
				return &runner{Store: s, Notifier: n, Env: env}
			},
		),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	r := MustGet[*runner](container)
	if r.Store.Name != "prod-store" {
		t.Errorf("runner.Store.Name = %v, want %v", r.Store.Name, "prod-store")
	}
	if r.Notifier.Target != "slack" {
		t.Errorf("runner.Notifier.Target = %v, want %v", r.Notifier.Target, "slack")
	}
	if r.Env != "prod" {
		t.Errorf("runner.Env = %v, want %v", r.Env, "prod")
	}
}

func TestContainer_Interface(t *testing.T) {
	var _ Container = (*dig.Container)(nil)
}
