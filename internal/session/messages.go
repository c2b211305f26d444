package session

import (
	"errors"

	"amzaki/internal/llm"
)

const (
	WelcomeMessage = "👋 Hi there! I'm Am Zaki, your personal assistant.\nAsk me anything and I'll help you out!"

	errorPrefix       = "⚠️ Something went wrong: "
	badRequestMessage = "Connection problem, check your API key."
	rateLimitMessage  = "Easy there, the server is busy. Try again in a little while."
	emptyReplyMessage = "Sorry, I can't answer right now."
	missingKeyNotice  = "⚠️ GOOGLE_API_KEY is not set. Add it to your environment or .env file; messages will fail until then."
)

// UserMessage converts a completion failure into the text shown in the chat.
func UserMessage(err error) string {
	switch llm.KindOf(err) {
	case llm.KindBadRequest:
		return errorPrefix + badRequestMessage
	case llm.KindRateLimited:
		return errorPrefix + rateLimitMessage
	case llm.KindEmptyResponse:
		return errorPrefix + emptyReplyMessage
	}
	var e *llm.Error
	if errors.As(err, &e) && e.Message != "" {
		return errorPrefix + e.Message
	}
	return errorPrefix + err.Error()
}
