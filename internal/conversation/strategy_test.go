package conversation

import (
	"errors"
	"testing"

	"github.com/brewpay/brewbot/internal/domain"
)

func TestIngredientStrategy(t *testing.T) {
	t.Run("accumulates in order", func(t *testing.T) {
		s := NewStrategy(ModeIngredients)

		for _, tag := range []string{"espresso", "milk", "vanilla"} {
			if err := s.Apply("add_" + tag); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if got := s.Describe(); got != "espresso, milk, vanilla" {
			t.Errorf("unexpected description: %q", got)
		}
	})

	t.Run("rejects sixth ingredient without mutating", func(t *testing.T) {
		s := NewStrategy(ModeIngredients)

		for _, tag := range []string{"a", "b", "c", "d", "e"} {
			if err := s.Apply("add_" + tag); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		err := s.Apply("add_f")
		if !errors.Is(err, domain.ErrIngredientLimit) {
			t.Fatalf("expected ErrIngredientLimit, got %v", err)
		}
		if got := s.Describe(); got != "a, b, c, d, e" {
			t.Errorf("rejected append mutated state: %q", got)
		}
	})

	t.Run("empty selection describes as empty", func(t *testing.T) {
		s := NewStrategy(ModeIngredients)
		if got := s.Describe(); got != "" {
			t.Errorf("expected empty description, got %q", got)
		}
	})

	t.Run("unknown action errors", func(t *testing.T) {
		s := NewStrategy(ModeIngredients)
		if err := s.Apply("brew_now"); err == nil {
			t.Fatal("expected error for unknown action")
		}
	})
}

func TestAttributeStrategy(t *testing.T) {
	t.Run("setting overwrites", func(t *testing.T) {
		s := NewStrategy(ModeAttributes)

		if err := s.Apply("set_temperature_hot"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Apply("set_temperature_iced"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Apply("set_roast_dark"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := s.Describe(); got != "temperature: iced, roast: dark" {
			t.Errorf("unexpected description: %q", got)
		}
	})

	t.Run("unset attributes omitted", func(t *testing.T) {
		s := NewStrategy(ModeAttributes)
		if got := s.Describe(); got != "" {
			t.Errorf("expected empty description, got %q", got)
		}
	})

	t.Run("rejects unknown attribute and value", func(t *testing.T) {
		s := NewStrategy(ModeAttributes)
		if err := s.Apply("set_size_large"); err == nil {
			t.Error("expected error for unknown attribute")
		}
		if err := s.Apply("set_roast_burnt"); err == nil {
			t.Error("expected error for unknown value")
		}
	})

	t.Run("options cover every attribute", func(t *testing.T) {
		s := NewStrategy(ModeAttributes)
		if rows := len(s.Options()); rows != len(attributes) {
			t.Errorf("expected %d option rows, got %d", len(attributes), rows)
		}
	})
}
