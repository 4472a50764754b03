// Package gate implements the shared-password access check for the survey.
package gate

import (
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pulse/api/internal/report"
)

// Gate verifies the shared access password. A bcrypt hash takes precedence
// over a plaintext password; plaintext is meant for local development only.
type Gate struct {
	hash  string
	plain string
}

func New(passwordHash, password string) *Gate {
	return &Gate{hash: passwordHash, plain: password}
}

// Enabled reports whether any password is configured at all. With neither
// set, every login attempt is rejected.
func (g *Gate) Enabled() bool {
	return g.hash != "" || g.plain != ""
}

func (g *Gate) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	if g.hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.hash), []byte(candidate)) == nil
	}
	if g.plain != "" {
		return subtle.ConstantTimeCompare([]byte(g.plain), []byte(candidate)) == 1
	}
	return false
}

// CurrentPeriodLabel is a pure function of the clock: the calendar month
// containing now, in UTC. Nothing is persisted, so concurrent requests can
// never observe a half-rolled period.
func CurrentPeriodLabel(now time.Time) string {
	return report.CurrentMonth(now).String()
}
