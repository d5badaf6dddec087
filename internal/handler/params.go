package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

var pathParam = runtime.BindStyledParameterOptions{
	ParamLocation: runtime.ParamLocationPath,
	Explode:       false,
	Required:      true,
}

// pathUUID binds the named chi path parameter as a UUID, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	var id openapi_types.UUID
	if err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id, pathParam); err != nil {
		requestError(w, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return uuid.Nil, false
	}
	return id, true
}

// pathInt binds the named chi path parameter as an int, writing a 400 on failure.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	var n int
	if err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &n, pathParam); err != nil {
		requestError(w, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return 0, false
	}
	return n, true
}

// queryInt binds an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	var n *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &n); err != nil {
		requestError(w, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return nil, false
	}
	return n, true
}

// queryString binds an optional string query parameter.
func queryString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		requestError(w, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return "", false
	}
	if v == nil {
		return "", true
	}
	return *v, true
}
