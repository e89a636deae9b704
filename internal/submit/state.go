package submit

// State is where a submission stands.
type State int

const (
	Idle State = iota
	HomeReady
	Dialogs
	FilesAttached
	TextEntered
	AwaitingUploadComplete
	Confirmed
	CancelledDebug
	Failed
)

var stateNames = [...]string{
	Idle:                   "idle",
	HomeReady:              "home-ready",
	Dialogs:                "dialogs",
	FilesAttached:          "files-attached",
	TextEntered:            "text-entered",
	AwaitingUploadComplete: "awaiting-upload-complete",
	Confirmed:              "confirmed",
	CancelledDebug:         "cancelled-debug",
	Failed:                 "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Confirmed || s == CancelledDebug || s == Failed
}
