package session

import (
	"context"
	"strings"
	"time"

	"caseflow/authority"

	"github.com/fundwit/go-commons/types"
)

type Session struct {
	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`

	// Context carries the request-scoped trace context; it is not part
	// of the cached session value and is refreshed per request.
	Context context.Context `json:"-"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

func (s *Session) Clone() Session {
	c := *s
	c.Perms = append(authority.Permissions{}, s.Perms...)
	return c
}

// VisibleDefinitions lists the definition names the session's scoped
// roles reach. A nil result means no scoping applies (system role).
func (s *Session) VisibleDefinitions() []string {
	if s.Perms.HasGlobalAdminRole() {
		return nil
	}
	names := []string{}
	seen := map[string]bool{}
	for _, perm := range s.Perms {
		idx := strings.Index(perm, "_")
		if idx <= 0 || idx == len(perm)-1 {
			continue
		}
		name := perm[idx+1:]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
