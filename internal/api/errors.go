package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/atharv3903/towdispatch/internal/domain"
)

// ErrResponse renders an error as JSON.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	ErrorText     string   `json:"error,omitempty"` // application-level error message
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrValidation(err error) render.Renderer {
	resp := &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      "validation failed",
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.ErrValidation = append(resp.ErrValidation, fe.Field()+" failed on "+fe.Tag())
		}
	} else {
		resp.ErrorText = err.Error()
	}
	return resp
}

// ErrDomain maps a domain error code to its HTTP status. Internal errors hide
// their cause.
func ErrDomain(err error) render.Renderer {
	switch domain.CodeOf(err) {
	case domain.ErrNotFound:
		return &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusNotFound,
			StatusText:     "Resource not found.",
			ErrorText:      err.Error(),
		}
	case domain.ErrBadParamInput:
		return ErrInvalidRequest(err)
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error.",
	}
}
