package interceptor

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/log"
)

// ExceptionInterceptor recovers panics and replies with the unified error envelope.
func ExceptionInterceptor(c *gin.Context) {
	defer func() {
		if err := recover(); err != nil {
			http.WithRepErr(c, http.InternalError.Code, errorToString(err), c.Request.URL.Path)
			log.Errorf("panic: %v\n%s", err, debug.Stack())
			c.Abort()
		}
	}()
	c.Next()
}

func errorToString(err interface{}) string {
	switch v := err.(type) {
	case http.ResponseErr:
		if errMsg, ok := v.ErrMsg.(string); ok {
			return errMsg
		}
		return http.InternalError.Msg
	case error:
		// never leak a stack trace to the client
		return http.InternalError.Msg
	default:
		if errMsg, ok := v.(string); ok {
			return errMsg
		}
		return http.InternalError.Msg
	}
}
