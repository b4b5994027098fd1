package lifecycle

import (
	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/errors"
)

type Verb string

const (
	VerbInstall Verb = "install"
	VerbCheck   Verb = "check"
	VerbStart   Verb = "start"
	VerbRestart Verb = "restart"
	VerbStop    Verb = "stop"
	VerbStatus  Verb = "status"
)

// Verbs lists every verb in the order the help text shows them.
func Verbs() []Verb {
	return []Verb{VerbInstall, VerbCheck, VerbStart, VerbRestart, VerbStop, VerbStatus}
}

func (v Verb) Valid() bool {
	for _, known := range Verbs() {
		if v == known {
			return true
		}
	}
	return false
}

// SelectVerb picks the single verb set among the flags, keyed by verb.
// Zero or several set verbs are a usage error.
func SelectVerb(set map[Verb]bool) (Verb, error) {
	var selected []Verb
	for _, verb := range Verbs() {
		if set[verb] {
			selected = append(selected, verb)
		}
	}

	switch len(selected) {
	case 0:
		return "", errors.NewUsageError("no action specified", nil)
	case 1:
		return selected[0], nil
	default:
		return "", errors.NewUsageError("only one action may be given per run", nil).
			WithContext("verbs", selected)
	}
}

// Request is one controller run. Installation is only read by the install verb.
type Request struct {
	Verb         Verb
	Installation config.InstallationConfig
}
