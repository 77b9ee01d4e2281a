package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"inboxpilot/internal/service"

	"github.com/sirupsen/logrus"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	_ = WriteJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// WriteCreated writes a 201 Created response with the given data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteOK writes a 200 OK response with the given data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteValidationError writes a 400 Bad Request response with VALIDATION_ERROR code
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// WriteInvalidJSON writes a 400 response for an unreadable request body
func WriteInvalidJSON(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "INVALID_JSON", message)
}

// WriteInternalError writes a 500 response without exposing internal details
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// HandleServiceError maps service layer errors to HTTP responses. Anything
// unrecognized is logged and reported as a 500.
func HandleServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		notFound   *service.NotFoundError
		validation *service.ValidationError
		business   *service.BusinessLogicError
		conflict   *service.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		WriteError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", notFound.Error())
	case errors.As(err, &validation):
		WriteValidationError(w, validation.Message)
	case errors.As(err, &business):
		WriteError(w, http.StatusBadRequest, "BUSINESS_LOGIC_ERROR", business.Message)
	case errors.As(err, &conflict):
		WriteError(w, http.StatusConflict, "CONFLICT", conflict.Message)
	default:
		log.WithError(err).Error("unhandled service error")
		WriteInternalError(w)
	}
}
