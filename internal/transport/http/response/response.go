package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeInvalidConfiguration = 40001
	CodeUnsupportedFormat    = 40002
	CodeDocumentNotFound     = 40400
	CodeInternalServer       = 50000
	CodeIndexCorrupt         = 50001
	CodeGenerationFailed     = 50200
	CodeServiceUnavailable   = 50300
	CodeEmbeddingUnavailable = 50301
	CodeGenerationTimeout    = 50400
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: msg,
	})
}

// ErrorWithData is Error with a payload, used when a failed request still
// produced something worth returning.
func ErrorWithData(c *gin.Context, httpStatus int, code int, msg string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: msg,
		Data:    data,
	})
}
