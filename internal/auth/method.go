package auth

import (
	"fmt"
	"strings"
)

// Method selects how to sign in.
type Method string

const (
	// MethodAuto tries every strategy in order.
	MethodAuto Method = "auto"
	// MethodForm is the site's own username/password form.
	MethodForm Method = "form"
	// MethodTwitter signs in through Twitter.
	MethodTwitter Method = "twitter"
	// MethodGoogle signs in through Google.
	MethodGoogle Method = "google"
)

// autoOrder is the order auto tries strategies in.
var autoOrder = []Method{MethodForm, MethodTwitter, MethodGoogle}

var aliases = map[string]Method{
	"":        MethodAuto,
	"auto":    MethodAuto,
	"form":    MethodForm,
	"primary": MethodForm,
	"twitter": MethodTwitter,
	"alt1":    MethodTwitter,
	"google":  MethodGoogle,
	"alt2":    MethodGoogle,
}

// ParseMethod accepts a method name or alias, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown login method %q", s)
	}
	return m, nil
}
