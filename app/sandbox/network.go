package sandbox

import "strings"

// Tanzanian mobile network operators by subscriber-number prefix. Prefixes
// are the two digits after the trunk prefix (07x/06x in local form).
var networkPrefixes = map[string]string{
	"74": "vodacom",
	"75": "vodacom",
	"76": "vodacom",
	"65": "tigo",
	"67": "tigo",
	"71": "tigo",
	"68": "airtel",
	"69": "airtel",
	"78": "airtel",
	"61": "halotel",
	"62": "halotel",
}

// NetworkForPhone resolves the carrier label for a normalized phone number.
// Returns an empty string for prefixes no operator claims.
func NetworkForPhone(phone string) string {
	subscriber := phone
	switch {
	case strings.HasPrefix(subscriber, "+255"):
		subscriber = subscriber[4:]
	case strings.HasPrefix(subscriber, "255"):
		subscriber = subscriber[3:]
	case strings.HasPrefix(subscriber, "0"):
		subscriber = subscriber[1:]
	}
	if len(subscriber) < 2 {
		return ""
	}
	return networkPrefixes[subscriber[:2]]
}
