package response

import (
	"net/http"

	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Body is the envelope every JSON endpoint returns.
type Body struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func Success(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: msg, Data: data})
}

func Created(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Message: msg, Data: data})
}

// Fail answers 400 with msg.
func Fail(c *gin.Context, msg string, data interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body{
		Success: false,
		Error:   msg,
		Code:    string(apperrors.KindValidation),
		Data:    data,
	})
}

// AbortWithError maps err's kind onto a status and aborts the chain.
// Store failures are logged; their detail is not echoed back.
func AbortWithError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)
	msg := apperrors.GetMessage(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Body{Success: false, Error: msg, Code: string(kind)})
}
