package access

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Gate stores and checks password verification state in the visitor's session.
type Gate struct {
	store  *session.Store
	secret string
}

// NewGate creates a gate backed by store. secret keys the session tokens.
func NewGate(store *session.Store, secret string) *Gate {
	return &Gate{store: store, secret: secret}
}

// IsVerified reports whether the current session unlocked the item with its
// current password.
func (g *Gate) IsVerified(c *fiber.Ctx, kind string, id uint, passwordUpdatedAt *time.Time) bool {
	if g == nil || g.store == nil {
		return false
	}
	sess, err := g.store.Get(c)
	if err != nil {
		return false
	}
	stored, _ := sess.Get(SessionKey(kind, id)).(string)
	return TokenMatches(stored, SessionToken(g.secret, kind, id, passwordUpdatedAt))
}

// MarkVerified records that the current session unlocked the item.
func (g *Gate) MarkVerified(c *fiber.Ctx, kind string, id uint, passwordUpdatedAt *time.Time) error {
	if g == nil || g.store == nil {
		return fmt.Errorf("session store not configured")
	}
	sess, err := g.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Set(SessionKey(kind, id), SessionToken(g.secret, kind, id, passwordUpdatedAt))
	if err := sess.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
