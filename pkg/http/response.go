package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with statusCode as both the HTTP status and the body status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// AcceptedResponse acknowledges work queued for later.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusAccepted, data)
}

// BadRequestResponse writes validation errors.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// ErrorsResponse writes one or more AppErrors under the status of the first.
func ErrorsResponse(c echo.Context, errs ...*AppError) error {
	status := http.StatusInternalServerError
	if len(errs) > 0 && errs[0].Status != 0 {
		status = errs[0].Status
	}
	return DataResponse(c, status, errs)
}

// InternalServerErrorResponse hides the cause behind a generic ERR_INTERNAL.
func InternalServerErrorResponse(c echo.Context) error {
	return ErrorsResponse(c, InternalError("internal error"))
}

// AppErrorResponse writes err if it is an AppError and a generic 500 otherwise.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorsResponse(c, appErr)
	}
	return InternalServerErrorResponse(c)
}
