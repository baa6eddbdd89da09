package httpx

import (
	"github.com/KOMKZ/go-yogan-admission/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc is a handler with a typed request and response.
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap parses Req, validates it when it implements validator.Validatable, runs handler and
// renders the result with OkJson or HandleError.
func Wrap[Req any, Resp any](handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			HandleError(c, err)
			return
		}

		if v, ok := any(&req).(validator.Validatable); ok {
			if err := validator.ValidateRequest(v); err != nil {
				HandleError(c, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			HandleError(c, err)
			return
		}
		OkJson(c, resp)
	}
}
