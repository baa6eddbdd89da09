package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse binds path (uri tag), query (form tag) and, when present, a JSON body into req.
// Path and query binding errors are ignored because most request types only carry some
// of the tags; body errors are returned.
func Parse(c *gin.Context, req interface{}) error {
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return ErrBadRequest.Wrap(err)
		}
	}
	return nil
}
