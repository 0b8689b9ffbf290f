package service

import "fmt"

const (
	MsgAlreadyRegistered = "You are already registered."
	MsgInvalidPayload    = "Invalid payload format."
	MsgInvalidQuestion   = "Invalid question."
	MsgThanksForVote     = "Thank you for your vote."
	MsgSomethingWrong    = "Something went wrong, please try again later."
	MsgEmptyBroadcast    = "Nothing to send. Use !message"
)

func msgRegistered(userID string) string {
	return fmt.Sprintf("Your user ID is %s. After the administrator verifies you, you will receive announcements and polls.", userID)
}

func msgPollEnded(pollID string) string {
	return fmt.Sprintf("Poll %s has ended.", pollID)
}

func msgAlreadyAnswered(pollID string) string {
	return fmt.Sprintf("You have already answered poll %s.", pollID)
}

func msgNotAccepting(contactURL string) string {
	if contactURL == "" {
		return "The bot is not accepting messages right now. Please contact the administrator."
	}
	return fmt.Sprintf("The bot is not accepting messages right now. Please contact the administrator: %s", contactURL)
}

func msgBroadcastSent(sent, total int) string {
	return fmt.Sprintf("Message sent to %d of %d users.", sent, total)
}

func msgPollSent(pollID string, sent, total int) string {
	return fmt.Sprintf("Poll %s sent to %d of %d users.", pollID, sent, total)
}

func msgPollUndelivered(pollID string) string {
	return fmt.Sprintf("Poll %s was created but could not be delivered.", pollID)
}

func msgPollRejected(err error) string {
	return fmt.Sprintf("Poll was not created: %s. Use ?question;option1;option2", err)
}
