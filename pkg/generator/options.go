package generator

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nikogura/resume-forge/pkg/config"
)

const (
	PersonFirst = "first"
	PersonThird = "third"

	ModeIC         = "ic"
	ModeLeadership = "leadership"
)

// Options are the user-selected knobs for one generation. They are part of the fingerprint,
// so field names and tags must stay stable.
type Options struct {
	Person           string `json:"person"`
	Emphasis         string `json:"emphasis"`
	Mode             string `json:"mode"`
	ExperienceFormat string `json:"experience_format"`
}

// Normalize trims values and fills defaults.
func (o Options) Normalize() (n Options) {
	n = Options{
		Person:           strings.ToLower(strings.TrimSpace(o.Person)),
		Emphasis:         strings.TrimSpace(o.Emphasis),
		Mode:             strings.ToLower(strings.TrimSpace(o.Mode)),
		ExperienceFormat: strings.ToLower(strings.TrimSpace(o.ExperienceFormat)),
	}
	if n.Person == "" {
		n.Person = PersonFirst
	}
	if n.Mode == "" {
		n.Mode = ModeIC
	}
	if n.ExperienceFormat == "" {
		n.ExperienceFormat = config.FormatStandard
	}
	return n
}

// Validate rejects unknown values.
func (o Options) Validate() (err error) {
	switch o.Person {
	case PersonFirst, PersonThird:
	default:
		err = errors.Errorf("invalid person %q (want first or third)", o.Person)
		return err
	}

	switch o.Mode {
	case ModeIC, ModeLeadership:
	default:
		err = errors.Errorf("invalid mode %q (want ic or leadership)", o.Mode)
		return err
	}

	switch o.ExperienceFormat {
	case config.FormatStandard, config.FormatSplit:
	default:
		err = errors.Errorf("invalid experience format %q (want standard or split)", o.ExperienceFormat)
		return err
	}

	return err
}
