package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaam8/messenger_poll_bot/internal/models"
)

const (
	WelcomePayload   = "WELCOME_MESSAGE"
	payloadSeparator = "."
)

// EncodePayload builds the postback payload carried by an answer button.
func EncodePayload(pollID string, optionIdx int) string {
	return pollID + payloadSeparator + strconv.Itoa(optionIdx)
}

// DecodePayload splits "<pollID>.<optionIdx>". A missing separator, an empty poll id or a
// non-integer index is ErrMalformedPayload. Range checks are left to the caller.
func DecodePayload(payload string) (string, int, error) {
	pollID, rawIdx, ok := strings.Cut(payload, payloadSeparator)
	if !ok || pollID == "" {
		return "", 0, fmt.Errorf("%w: %q", models.ErrMalformedPayload, payload)
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", models.ErrMalformedPayload, payload)
	}
	return pollID, idx, nil
}
