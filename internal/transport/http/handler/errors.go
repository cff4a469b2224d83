package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lucansdev/project-ai-document/internal/app"
	"github.com/lucansdev/project-ai-document/internal/transport/http/middleware"
	"github.com/lucansdev/project-ai-document/internal/transport/http/response"
)

// serviceErrorMap routes app sentinel errors to an HTTP status and app code.
// Anything not listed falls through to a 500 with the handler's fallback
// message.
var serviceErrorMap = []struct {
	err    error
	status int
	code   int
}{
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrMessageEmpty, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrDocumentEmpty, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrUsernameExists, http.StatusBadRequest, response.CodeUsernameExists},
	{app.ErrEmailExists, http.StatusBadRequest, response.CodeEmailExists},
	{app.ErrUnsupportedType, http.StatusBadRequest, response.CodeUnsupportedType},
	{app.ErrNoProcessedDocuments, http.StatusBadRequest, response.CodeNoProcessedDocuments},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrConversationNotFound, http.StatusNotFound, response.CodeConversationNotFound},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrAlreadyProcessed, http.StatusConflict, response.CodeAlreadyProcessed},
	{app.ErrMessageEnqueue, http.StatusServiceUnavailable, response.CodeInternalServer},
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	for _, m := range serviceErrorMap {
		if errors.Is(err, m.err) {
			response.Error(c, m.status, m.code, err.Error())
			return
		}
	}
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

// currentUserID pulls the authenticated user out of the context set by the
// JWT middleware; a miss means the route is misconfigured or the token
// payload is stale.
func currentUserID(c *gin.Context) (uint, bool) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	userID, ok := raw.(uint)
	if !exists || !ok || userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	return userID, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
