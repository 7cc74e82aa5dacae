package mail

import (
	"fmt"
	"strings"
)

func Welcome(to, name, loginURL string) Message {
	return Message{
		To:      to,
		Subject: "Welkom bij VakSpot",
		Body: fmt.Sprintf("Hallo %s,\n\nJe account is aangemaakt. Log in via %s om te beginnen.\n\nGroet,\nVakSpot",
			displayName(name), loginURL),
	}
}

func NewBid(to, clientName, jobTitle string, amountCents int64, jobURL string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Nieuw bod op \"%s\"", jobTitle),
		Body: fmt.Sprintf("Hallo %s,\n\nEr is een bod van %s uitgebracht op je klus \"%s\".\nBekijk het bod: %s\n\nGroet,\nVakSpot",
			displayName(clientName), FormatEuro(amountCents), jobTitle, jobURL),
	}
}

func BidAccepted(to, proName, jobTitle, messagesURL string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Je bod op \"%s\" is geaccepteerd", jobTitle),
		Body: fmt.Sprintf("Hallo %s,\n\nGoed nieuws: de klant heeft je bod op \"%s\" geaccepteerd.\nNeem contact op via %s\n\nGroet,\nVakSpot",
			displayName(proName), jobTitle, messagesURL),
	}
}

func NewMessage(to, recipientName, jobTitle, messagesURL string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Nieuw bericht over \"%s\"", jobTitle),
		Body: fmt.Sprintf("Hallo %s,\n\nJe hebt een nieuw bericht ontvangen over \"%s\".\nLees het op %s\n\nGroet,\nVakSpot",
			displayName(recipientName), jobTitle, messagesURL),
	}
}

// FormatEuro formats cents as a Dutch euro amount, e.g. € 1.250,50
func FormatEuro(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s€ %s,%02d", sign, grouped.String(), cents%100)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "daar"
	}
	return name
}
