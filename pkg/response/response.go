package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code    int         `json:"code"` // 状态码，200 表示成功，非 200 为错误码
	Message string      `json:"msg"`  // 响应的消息描述
	Data    interface{} `json:"data"` // 返回的数据，可以是任意类型
}

// 错误标识
const (
	ErrorInvalidRequest = "INVALID_REQUEST"
	ErrorUnauthorized   = "UNAUTHORIZED"
	ErrorRateLimited    = "RATE_LIMITED"
	ErrorUnavailable    = "SERVICE_UNAVAILABLE"
	ErrorUnknown        = "UNKNOWN_ERROR"
)

func Success(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: msg,
		Data:    data,
	})
}

// AbortWithStatusJSON 中断请求并返回带错误标识的响应
func AbortWithStatusJSON(c *gin.Context, httpStatus int, err error) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":  httpStatus,
		"msg":   err.Error(),
		"data":  nil,
		"error": errorCode(httpStatus),
	})
}

func errorCode(httpStatus int) string {
	switch httpStatus {
	case http.StatusBadRequest:
		return ErrorInvalidRequest
	case http.StatusUnauthorized:
		return ErrorUnauthorized
	case http.StatusTooManyRequests:
		return ErrorRateLimited
	case http.StatusServiceUnavailable:
		return ErrorUnavailable
	default:
		return ErrorUnknown
	}
}
