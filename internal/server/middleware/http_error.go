package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorHandler maps domain errors onto the error envelope. Status errors
// carry their own HTTP mapping, protocol errors carry a transport status.
func ErrorHandler(log Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == nil || c.Response().Committed {
			return
		}

		resp := &ResponseError{
			Status:       http.StatusInternalServerError,
			Success:      false,
			Err:          err,
			ErrorMessage: err.Error(),
		}

		var (
			httpErr  *echo.HTTPError
			respErr  *ResponseError
			protoErr *protocol.Error
		)
		switch {
		case errors.As(err, &respErr):
			resp = respErr
		case errors.As(err, &httpErr):
			resp.Status = httpErr.Code
			resp.ErrorMessage = fmt.Sprint(httpErr.Message)
		case errors.As(err, &protoErr):
			resp.Status = protoErr.Status
			resp.ErrorCode = "protocol_error"
			resp.ErrorMessage = protoErr.Message
		default:
			if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
				resp.Status = httpStatus(st.Code())
				resp.ErrorCode = st.Code().String()
				resp.ErrorMessage = st.Message()
			} else if errors.Is(err, context.Canceled) && c.Request().Context().Err() == context.Canceled {
				resp.Status = 499
			}
		}

		if err := c.JSON(resp.Status, resp); err != nil {
			log.Errorw("could not response", "code", resp.Status, "response_body", resp)
		}
	}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
