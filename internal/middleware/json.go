package middleware

import (
	"encoding/json"
	"net/http"

	"go-user-accounts/internal/model"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.ErrorResponse{
		StatusCode: status,
		Message:    message,
		Errors:     []string{},
		Success:    false,
	})
}
