package core

// Command is an outbound message event. Text carries either chat content or a
// directive such as "/join dev"; Channel is optional context.
type Command struct {
	Sender  string
	Text    string
	Channel string
}
