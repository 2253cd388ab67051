package embedding

import (
	"fmt"
	"strconv"

	"github.com/okian/nestmatch/internal/domain/model"
)

// SeekerText renders a seeker as the sentence that gets embedded.
func SeekerText(s *model.Seeker) string {
	return fmt.Sprintf(
		"User is looking for a home with a budget of %s dollars, %d bedrooms and %d bathrooms. Preferences: %s",
		num(s.Budget), s.Bedrooms, s.Bathrooms, s.Description)
}

// ItemText renders an item as the sentence that gets embedded.
func ItemText(it *model.Item) string {
	return fmt.Sprintf(
		"This property is priced at %s dollars, has %d bedrooms and %d bathrooms, with a living area of %s square feet. Property description: %s",
		num(it.Price), it.Bedrooms, it.Bathrooms, num(it.LivingArea), it.Description)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
