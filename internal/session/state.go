package session

type State string

const (
	StateIdle          = State("idle")
	StateRecording     = State("recording")
	StateTranscribing  = State("transcribing")
	StateAwaitingReply = State("awaiting-reply")
	StateSpeaking      = State("speaking")
)

// transitions lists the forward edges. Every state may also return to idle.
var transitions = map[State][]State{
	StateIdle:          {StateRecording, StateTranscribing, StateAwaitingReply, StateSpeaking},
	StateRecording:     {StateTranscribing},
	StateTranscribing:  {StateAwaitingReply},
	StateAwaitingReply: {StateSpeaking},
	StateSpeaking:      {},
}

func canTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
