package auth

type action int

const (
	typeUsername action = iota
	typePassword
	click
)

type step struct {
	do      action
	element string
}

// strategy is one sign-in flow described as data: an optional button that
// opens it, the fields to fill and buttons to press, and for identity
// providers the elements the bot-challenge probe watches.
type strategy struct {
	method Method
	entry  string
	steps  []step

	// password still being on screen after submitting means a challenge
	// blocked the submission; submit is pressed again after it is ticked.
	password string
	submit   string
	captcha  bool
}

var strategies = map[Method]strategy{
	MethodForm: {
		method: MethodForm,
		steps: []step{
			{typeUsername, "login_username"},
			{typePassword, "login_password"},
			{click, "login_submit"},
		},
	},
	MethodTwitter: {
		method: MethodTwitter,
		entry:  "login_twitter",
		steps: []step{
			{typeUsername, "twitter_username"},
			{typePassword, "twitter_password"},
			{click, "twitter_submit"},
		},
		password: "twitter_password",
		submit:   "twitter_submit",
		captcha:  true,
	},
	MethodGoogle: {
		method: MethodGoogle,
		entry:  "login_google",
		steps: []step{
			{typeUsername, "google_email"},
			{click, "google_email_next"},
			{typePassword, "google_password"},
			{click, "google_password_next"},
		},
		password: "google_password",
		submit:   "google_password_next",
		captcha:  true,
	},
}
