package ai

import (
	"fmt"
	"time"
)

// GreetingPrompt asks for a barista greeting in the voice of the given
// persona at the current time of day.
func GreetingPrompt(age int, disposition string, now time.Time) string {
	return fmt.Sprintf(
		"You're a %d year old %s type girl, you work in a coffee shop and it's %s. "+
			"A customer walks into the coffee shop. Greet them, output only the greeting.",
		age, disposition, now.Format("Monday 15:04"))
}

// TastePrompt asks for a taste description of the customized drink.
func TastePrompt(description string) string {
	if description == "" {
		return "Please generate a taste description for a plain house coffee."
	}
	return fmt.Sprintf(
		"Please generate a drink taste description based on: %s.", description)
}
