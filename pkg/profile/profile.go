// Package profile loads the Markdown source profile and produces role-scoped excerpts of it.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SourceProfile is the master résumé every tailored version is derived from.
type SourceProfile struct {
	Path    string
	Content string
	// Hash is the sha256 hex digest of Content.
	Hash    string
	ModTime time.Time
}

// Load reads the profile and records its hash and modification time.
func Load(path string) (p SourceProfile, err error) {
	var info os.FileInfo
	info, err = os.Stat(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to stat profile: %s", path)
		return p, err
	}

	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read profile: %s", path)
		return p, err
	}

	if strings.TrimSpace(string(data)) == "" {
		err = errors.Errorf("profile is empty: %s", path)
		return p, err
	}

	sum := sha256.Sum256(data)

	p = SourceProfile{
		Path:    path,
		Content: string(data),
		Hash:    hex.EncodeToString(sum[:]),
		ModTime: info.ModTime(),
	}
	return p, err
}

// Scope keeps the first maxRoles role entries of the profile's experience sections and drops
// the rest wholesale. Roles are "### " headings under a "## " heading containing "experience".
// Everything outside experience sections is untouched. maxRoles <= 0 disables scoping.
func Scope(content string, maxRoles int) (scoped string) {
	if maxRoles <= 0 {
		scoped = content
		return scoped
	}

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))

	inExperience := false
	inFence := false
	dropping := false
	roles := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}

		if !inFence {
			switch level := headingLevel(trimmed); {
			case level == 1 || level == 2:
				inExperience = level == 2 && isExperienceHeading(trimmed)
				dropping = false
			case level == 3 && inExperience:
				roles++
				dropping = roles > maxRoles
			}
		}

		if dropping {
			continue
		}
		kept = append(kept, line)
	}

	scoped = strings.Join(kept, "\n")
	return scoped
}

// Roles returns the role headings of the experience sections, in order.
func Roles(content string) (roles []string) {
	inExperience := false
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		switch level := headingLevel(trimmed); {
		case level == 1 || level == 2:
			inExperience = level == 2 && isExperienceHeading(trimmed)
		case level == 3 && inExperience:
			roles = append(roles, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}
	}

	return roles
}

func headingLevel(line string) (level int) {
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level >= len(line) || line[level] != ' ' {
		level = 0
	}
	return level
}

func isExperienceHeading(line string) (ok bool) {
	ok = strings.Contains(strings.ToLower(line), "experience")
	return ok
}
