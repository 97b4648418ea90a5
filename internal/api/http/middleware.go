package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/confroom/internal/auth"
	"github.com/immxrtalbeast/confroom/internal/domain"
	"github.com/immxrtalbeast/confroom/internal/service"
)

const identityKey = "identity"

func RequireIdentity(identities service.IdentityProvider) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, err := identities.Verify(ctx.Request.Context(), auth.BearerToken(ctx.Request))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
			return
		}
		ctx.Set(identityKey, identity)
		ctx.Next()
	}
}

func identityFrom(ctx *gin.Context) (*domain.Identity, bool) {
	v, ok := ctx.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok
}
