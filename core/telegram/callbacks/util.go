package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into a routing key and payload.
// Telebot-encoded buttons ("\f<unique>|<payload>") yield their unique and payload;
// plain data such as "quiz_a_0_1" is returned whole as the key.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	if !strings.HasPrefix(raw, "\f") {
		return strings.TrimSpace(raw), ""
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(raw, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// CallbackKey returns the routing key of the current callback.
func CallbackKey(c tele.Context) string {
	key, _ := ParseCallbackData(c.Callback())
	return key
}

// CallbackPayload returns the payload after '|' of a Telebot-encoded callback.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}
