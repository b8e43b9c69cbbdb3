package response

import (
	"github.com/gin-gonic/gin"
)

// Result is the envelope carried at the top level of every response body.
// Endpoint payload structs embed it so their fields flatten next to
// success/code/desc on the wire.
type Result struct {
	Success bool              `json:"success"`
	Code    Code              `json:"code"`
	Desc    string            `json:"desc"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ResultFor builds the envelope header for a code.
func ResultFor(code Code) Result {
	return Result{
		Success: code == CodeSuccess,
		Code:    code,
		Desc:    code.Desc(),
	}
}

// Payload is implemented by endpoint response structs that embed Result.
type Payload interface {
	setResult(Result)
}

func (r *Result) setResult(res Result) { *r = res }

// OK sends a success envelope with the given payload and status.
func OK(c *gin.Context, status int, payload Payload) {
	payload.setResult(ResultFor(CodeSuccess))
	c.JSON(status, payload)
}

// Fail sends a bare error envelope. The HTTP status is derived from the code.
func Fail(c *gin.Context, code Code) {
	c.JSON(code.HTTPStatus(), ResultFor(code))
}

// FailWithFields sends an error envelope carrying field-level validation details.
func FailWithFields(c *gin.Context, code Code, fields map[string]string) {
	res := ResultFor(code)
	res.Fields = fields
	c.JSON(code.HTTPStatus(), res)
}

// AbortFail aborts the middleware chain and sends an error envelope.
func AbortFail(c *gin.Context, code Code) {
	c.AbortWithStatusJSON(code.HTTPStatus(), ResultFor(code))
}
