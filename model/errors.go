package model

import (
	"errors"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrModelNotFound can be wrapped by Generator implementations that detect
// a retired model themselves.
var ErrModelNotFound = errors.New("model not found")

// IsNotFound reports whether a generation error means the model id is not
// served for this key. Only this condition triggers the fallback list.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelNotFound) {
		return true
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == http.StatusNotFound {
			return true
		}
		if st := apiErr.GRPCStatus(); st != nil && st.Code() == codes.NotFound {
			return true
		}
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return true
	}
	// genai sometimes flattens the REST error into text
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") && strings.Contains(msg, "not found")
}
