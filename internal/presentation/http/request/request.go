package request

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/pkg/errorbank"
	"github.com/Additional-Code/parcel/pkg/validation"
)

// ParamID parses a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail("param", name))
	}
	return id, nil
}

// Page reads the page and limit query parameters. Malformed values fall back
// to defaults.
func Page(c echo.Context) dto.Page {
	number, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("limit"))
	return dto.Page{Number: number, Size: size}.Normalize()
}

// OptionalBool parses a boolean query parameter; absent yields nil.
func OptionalBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errorbank.BadRequest("invalid "+name, errorbank.WithDetail("param", name))
	}
	return &v, nil
}

// Bind decodes the body into v and validates it.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	return nil
}

// Validator adapts struct tag validation to echo.
type Validator struct{}

// Validate implements echo.Validator.
func (Validator) Validate(i any) error {
	return validation.Struct(i)
}
