package res

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error   string `json:"error"`             // Сообщение об ошибке (для пользователя)
	Code    string `json:"code,omitempty"`    // Код ошибки (для программной обработки)
	Details any    `json:"details,omitempty"` // Детали ошибки
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JsonError отправляет JSON ответ ошибки.
func JsonError(w http.ResponseWriter, status int, code, message string) {
	JsonResponse(w, ErrorResponse{Error: message, Code: code}, status)
}
