package session

// State is a step of the per-task crawl loop.
type State int

const (
	Idle State = iota
	SessionStarting
	Navigating
	ConsentCheck
	ChallengeCheck
	Extracting
	Paginating
	Done
	Failed
)

var stateNames = [...]string{
	Idle:            "IDLE",
	SessionStarting: "SESSION_STARTING",
	Navigating:      "NAVIGATING",
	ConsentCheck:    "CONSENT_CHECK",
	ChallengeCheck:  "CHALLENGE_CHECK",
	Extracting:      "EXTRACTING",
	Paginating:      "PAGINATING",
	Done:            "DONE",
	Failed:          "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether the task loop has finished.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
