package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/auth"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/httputil"
)

const ContextActor = "actor"

type ActorMiddleware struct {
	tokens *auth.TokenManager
}

func NewActorMiddleware(tokens *auth.TokenManager) *ActorMiddleware {
	return &ActorMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the resolved actor in
// the request context.
func (m *ActorMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, errors.Unauthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithError(c, errors.Unauthorized("invalid authorization format"))
			c.Abort()
			return
		}

		actor, err := m.tokens.Validate(parts[1])
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

// RequireRole rejects requests from actors outside the allowed roles.
func (m *ActorMiddleware) RequireRole(roles ...model.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			httputil.RespondWithError(c, errors.Unauthorized("not authenticated"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, errors.Forbidden("insufficient role"))
		c.Abort()
	}
}

// ActorFromContext returns the actor set by Authenticate.
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
