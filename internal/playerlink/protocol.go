package playerlink

// Message types sent by the browser window hosting a player.
const (
	MsgState      = "state"
	MsgEvent      = "event"
	MsgVisibility = "visibility"
)

// MsgCommand is the only message type sent to the browser.
const MsgCommand = "command"

// Commands carried by a command message.
const (
	CmdPlay      = "play"
	CmdPause     = "pause"
	CmdSeek      = "seek"
	CmdTimeShift = "timeshift"
)

// Inbound is a message from a player window. Fields not relevant to Type are
// omitted; absent state fields leave the cached value untouched.
type Inbound struct {
	Type string `json:"type"`

	Paused       *bool    `json:"paused,omitempty"`
	CurrentTime  *float64 `json:"current_time,omitempty"`
	AbsoluteTime *float64 `json:"absolute_time,omitempty"`
	TimeShift    *float64 `json:"time_shift,omitempty"`

	Event   string `json:"event,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

// Command is a message telling a player window what to do.
type Command struct {
	Type    string  `json:"type"`
	ID      string  `json:"id"`
	Command string  `json:"command"`
	Value   float64 `json:"value,omitempty"`
}
