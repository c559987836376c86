package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// The initiate endpoints answer with one fixed body no matter whether the
// subject exists or delivery worked, so responses carry no account-existence
// signal.
const (
	neutralLinkMessage = "if the details are valid, a verification link has been sent"
	neutralCodeMessage = "if the details are valid, a verification code has been sent"
)

func neutralLink(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": neutralLinkMessage,
	})
}

func neutralCode(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": neutralCodeMessage,
	})
}

func success(c echo.Context, body map[string]any) error {
	if body == nil {
		body = map[string]any{}
	}
	body["status"] = "success"
	return c.JSON(http.StatusOK, body)
}

func failure(c echo.Context, status int, code string) error {
	return c.JSON(status, map[string]string{
		"status": "error",
		"error":  code,
	})
}

func validationFailure(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"status": "error",
		"error":  "validation_failed",
		"fields": err,
	})
}
