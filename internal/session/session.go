// Package session carries the authenticated viewer of a request. The auth
// middleware puts it on the gin context and handlers read it back explicitly.
package session

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Viewer is the account making the request.
type Viewer struct {
	UserID int64
	Email  string
}

type ctxKey struct{}

const ginKey = "viewer"

// Set attaches v to both the gin context and the request context.
func Set(c *gin.Context, v Viewer) {
	c.Set(ginKey, v)
	c.Request = c.Request.WithContext(NewContext(c.Request.Context(), v))
}

// From returns the viewer set by the auth middleware.
func From(c *gin.Context) (Viewer, bool) {
	raw, ok := c.Get(ginKey)
	if !ok {
		return Viewer{}, false
	}
	v, ok := raw.(Viewer)
	return v, ok && v.UserID > 0
}

func NewContext(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(ctxKey{}).(Viewer)
	return v, ok && v.UserID > 0
}
