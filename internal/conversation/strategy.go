package conversation

import (
	"fmt"
	"strings"

	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/domain"
)

// Customization strategy modes, selected by configuration.
const (
	ModeIngredients = "ingredients"
	ModeAttributes  = "attributes"
)

// maxIngredients caps the accumulation strategy.
const maxIngredients = 5

// Strategy accumulates a chat's in-progress drink customization. The two
// shapes (ordered ingredient accumulation and ternary attribute selection)
// share this surface so the engine never branches on the mode.
type Strategy interface {
	// Apply records one customization action. It must not mutate state
	// when it returns an error.
	Apply(action string) error
	// Options lists the selectable actions for the current state.
	Options() chat.Keyboard
	// Describe renders the accumulated selection; empty selection yields
	// an empty string, which is a valid description.
	Describe() string
}

// NewStrategy returns the strategy for the configured mode.
func NewStrategy(mode string) Strategy {
	if mode == ModeAttributes {
		return newAttributeStrategy()
	}
	return &ingredientStrategy{}
}

// ingredientStrategy appends one ingredient tag per action to an ordered
// list, hard-capped at maxIngredients.
type ingredientStrategy struct {
	selected []string
}

var ingredientTags = []string{
	"espresso", "milk", "oat milk", "vanilla", "caramel", "chocolate", "ice", "honey",
}

func (s *ingredientStrategy) Apply(action string) error {
	tag, ok := strings.CutPrefix(action, "add_")
	if !ok {
		return fmt.Errorf("unknown customization action %q", action)
	}
	if len(s.selected) >= maxIngredients {
		return domain.ErrIngredientLimit
	}
	s.selected = append(s.selected, tag)
	return nil
}

func (s *ingredientStrategy) Options() chat.Keyboard {
	var kb chat.Keyboard
	var row []chat.Button
	for _, tag := range ingredientTags {
		row = append(row, chat.Button{Text: tag, Action: "add_" + tag})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return kb
}

func (s *ingredientStrategy) Describe() string {
	return strings.Join(s.selected, ", ")
}

// attributeStrategy holds a fixed set of named attributes, each unset
// until chosen and overwritten on re-selection.
type attributeStrategy struct {
	values map[string]string
}

type attrDef struct {
	name    string
	choices [2]string
}

var attributes = []attrDef{
	{name: "temperature", choices: [2]string{"hot", "iced"}},
	{name: "sweetness", choices: [2]string{"sweet", "unsweetened"}},
	{name: "roast", choices: [2]string{"light", "dark"}},
}

func newAttributeStrategy() *attributeStrategy {
	return &attributeStrategy{values: make(map[string]string)}
}

func (s *attributeStrategy) Apply(action string) error {
	rest, ok := strings.CutPrefix(action, "set_")
	if !ok {
		return fmt.Errorf("unknown customization action %q", action)
	}
	name, value, ok := strings.Cut(rest, "_")
	if !ok {
		return fmt.Errorf("malformed attribute action %q", action)
	}
	for _, attr := range attributes {
		if attr.name != name {
			continue
		}
		if value != attr.choices[0] && value != attr.choices[1] {
			return fmt.Errorf("unknown value %q for attribute %s", value, name)
		}
		s.values[name] = value
		return nil
	}
	return fmt.Errorf("unknown attribute %q", name)
}

func (s *attributeStrategy) Options() chat.Keyboard {
	var kb chat.Keyboard
	for _, attr := range attributes {
		kb = append(kb, []chat.Button{
			{Text: attr.choices[0], Action: "set_" + attr.name + "_" + attr.choices[0]},
			{Text: attr.choices[1], Action: "set_" + attr.name + "_" + attr.choices[1]},
		})
	}
	return kb
}

func (s *attributeStrategy) Describe() string {
	var parts []string
	for _, attr := range attributes {
		if v, ok := s.values[attr.name]; ok {
			parts = append(parts, attr.name+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}
