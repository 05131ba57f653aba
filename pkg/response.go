package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
)

// APIResponse, HTTP API'nin tek zarfı.
// Claim reddi gibi sonuçlar Success=true ile Data içinde döner;
// Success=false sadece isteğin kendisi başarısızsa yazılır.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// errorStatuses sırayla denenir, ilk eşleşen kazanır.
var errorStatuses = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrPatchLoop, http.StatusConflict},
	{ErrBusy, http.StatusConflict},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrBadRequest, http.StatusBadRequest},
}

// JSON, başarılı yanıt yazar.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Success: true, Data: data})
}

// Error, err zincirindeki domain error'a göre status seçer.
// ErrBusy yanıtlarına Retry-After eklenir.
func Error(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBusy) {
		w.Header().Set("Retry-After", "1")
	}
	write(w, StatusFor(err), APIResponse{Error: err.Error()})
}

// ErrorWithMessage, verilen status ve mesajla hata yanıtı yazar.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	write(w, status, APIResponse{Error: message})
}

// StatusFor, err için HTTP status döner; tanınmayan hatalar 500'dür.
func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
