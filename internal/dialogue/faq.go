package dialogue

import (
	"fmt"
	"strings"
)

// servicePrices is the price table keyed by normalized service name.
var servicePrices = map[string]int{
	"haircut":    30,
	"beard trim": 15,
	"combo":      40,
}

// PriceFor looks up the price for a normalized service name.
func PriceFor(service string) (int, bool) {
	p, ok := servicePrices[service]
	return p, ok
}

func priceAnswer() string {
	return fmt.Sprintf("A haircut is $%d, a beard trim is $%d, and the combo is $%d.",
		servicePrices["haircut"], servicePrices["beard trim"], servicePrices["combo"])
}

var faqAnswers = map[string]string{
	"hours":    "We're open Tuesday through Saturday, nine A M to six P M.",
	"services": "We offer haircuts, beard trims, and a combo of both.",
	"location": "We're at 412 Main Street, right across from the pharmacy.",
}

const faqFallback = "Good question. I can help with our hours, prices, services, or where to find us."

// FAQAnswer returns the fixed answer for a topic, falling back when the topic
// is unrecognized. Prices come from the lookup table so the spoken text never
// drifts from what PriceFor reports.
func FAQAnswer(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	if t == "prices" {
		return priceAnswer()
	}
	if a, ok := faqAnswers[t]; ok {
		return a
	}
	return faqFallback
}
