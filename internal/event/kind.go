package event

// Kind identifies an event fired through the Registry.
type Kind int

const (
	Raw Kind = iota
	Invite
	Privmsg
	Notice
	Nick
	Mode
	Topic
	Join
	Part
	Kick
	Quit
)

var kindNames = map[Kind]string{
	Raw:     "raw",
	Invite:  "invite",
	Privmsg: "privmsg",
	Notice:  "notice",
	Nick:    "nick",
	Mode:    "mode",
	Topic:   "topic",
	Join:    "join",
	Part:    "part",
	Kick:    "kick",
	Quit:    "quit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Arities is the fixed parameter count of every built-in kind, in registration order.
//
//	raw      command, params
//	invite   user, channel
//	privmsg  user, channel, message
//	notice   user, channel, message
//	nick     user, old nick
//	mode     user, target, mode string
//	topic    user, channel, topic
//	join     user, channel
//	part     user, channel, message
//	kick     user, channel, kicker, message
//	quit     user, message
var Arities = []struct {
	Kind  Kind
	Arity int
}{
	{Raw, 2},
	{Invite, 2},
	{Privmsg, 3},
	{Notice, 3},
	{Nick, 2},
	{Mode, 3},
	{Topic, 3},
	{Join, 2},
	{Part, 3},
	{Kick, 4},
	{Quit, 2},
}

// Result is what a callback returns to steer the firing loop.
type Result int

const (
	// Continue lets the remaining callbacks run.
	Continue Result = iota
	// Stop ends the firing loop for this event.
	Stop
	// StopAll ends the loop and suppresses the caller's default behaviour.
	StopAll
)

func (r Result) String() string {
	switch r {
	case Stop:
		return "stop"
	case StopAll:
		return "stop_all"
	default:
		return "continue"
	}
}

// Stopped reports whether r is one of the stop sentinels.
func (r Result) Stopped() bool {
	return r == Stop || r == StopAll
}
