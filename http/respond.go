package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"carregistry/ml"
	"carregistry/registry"
)

// errorBody 错误响应
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 将领域错误映射为HTTP状态码
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validation *registry.ValidationError
		invalid    *ml.InvalidObservationError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Message: err.Error(), Fields: validation.Fields})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_mileage", Message: err.Error()})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body_too_large", Message: err.Error()})
	case errors.Is(err, registry.ErrCarNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, ml.ErrModelNotTrained):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "model_not_trained", Message: err.Error()})
	case errors.Is(err, ml.ErrNoTrainingData):
		writeJSON(w, http.StatusConflict, errorBody{Error: "no_training_data", Message: err.Error()})
	default:
		logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: message})
}

// decodeJSON 解码请求体，拒绝未知字段
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
