package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified success envelope.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// ResponseErr is the unified error envelope.
type ResponseErr struct {
	ErrCode int    `json:"code"`
	ErrMsg  any    `json:"errMsg"`
	Path    string `json:"path,omitempty"`
}

// WithRep replies with the success envelope and data payload.
func WithRep(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code: Success.Code,
		Msg:  Success.Msg,
		Data: data,
	})
}

// WithRepMsg replies with a success envelope carrying a custom message.
func WithRepMsg(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: Success.Code,
		Msg:  msg,
	})
}

// WithRepErr replies with the error envelope including the request path.
func WithRepErr(c *gin.Context, code int, errMsg string, path string) {
	c.JSON(http.StatusOK, ResponseErr{
		ErrCode: code,
		ErrMsg:  errMsg,
		Path:    path,
	})
}

// WithRepErrMsg replies with the error envelope without a path.
func WithRepErrMsg(c *gin.Context, code int, errMsg string) {
	c.JSON(http.StatusOK, ResponseErr{
		ErrCode: code,
		ErrMsg:  errMsg,
	})
}
