package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"carregistry/db"
	"carregistry/ml"
	"carregistry/monitoring"
	"carregistry/pipeline"
	"carregistry/registry"
	"carregistry/scheduler"
)

// CarService 车辆登记服务
type CarService interface {
	List(ctx context.Context) ([]registry.Car, error)
	Get(ctx context.Context, id string) (registry.Car, error)
	Create(ctx context.Context, in registry.CarInput) (registry.Car, error)
	Update(ctx context.Context, id string, in registry.UpdateCarInput) (registry.Car, error)
	Delete(ctx context.Context, id string) error
}

// Trainer 触发一次重训练
type Trainer interface {
	Retrain(ctx context.Context) (scheduler.Result, error)
}

// ObservationWriter 追加观测样本
type ObservationWriter interface {
	AddObservation(ctx context.Context, o ml.Observation) (int64, error)
}

// TrainingLogReader 读取训练记录
type TrainingLogReader interface {
	LoadTrainingLog(ctx context.Context, limit int) ([]db.TrainingLog, error)
}

// RetrainStatus 重训练调度状态
type RetrainStatus interface {
	Status() scheduler.Status
}

// IngestionStatus 观测导入与清洗状态
type IngestionStatus interface {
	GetStats() pipeline.IngestionStats
	CleaningStats() pipeline.CleaningStats
	RecentIssues(limit int) []pipeline.QualityIssue
}

// Handlers 路由依赖
type Handlers struct {
	Cars         CarService
	Predictor    *ml.PredictionService
	Trainer      Trainer
	Observations ObservationWriter
	TrainingLog  TrainingLogReader
	// Retrainer 与 Ingestion 均为空时不注册 /api/training/status
	Retrainer RetrainStatus
	Ingestion IngestionStatus
	// WebSocket 模型事件推送，为空时不注册
	WebSocket http.HandlerFunc
	// Metrics 为空时不注册 /api/metrics
	Metrics *monitoring.MetricsCollector
	Logger  *zap.Logger
}

// Register 注册所有路由
func (h *Handlers) Register(mux *http.ServeMux) {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	mux.HandleFunc("GET /api/health", h.handleHealth)

	mux.HandleFunc("GET /api/cars", h.handleListCars)
	mux.HandleFunc("POST /api/cars", h.handleCreateCar)
	mux.HandleFunc("GET /api/cars/{id}", h.handleGetCar)
	mux.HandleFunc("PUT /api/cars/{id}", h.handleUpdateCar)
	mux.HandleFunc("DELETE /api/cars/{id}", h.handleDeleteCar)

	mux.HandleFunc("POST /api/cars/predict", h.handlePredict)
	mux.HandleFunc("POST /api/cars/train", h.handleTrain)
	mux.HandleFunc("GET /api/cars/model", h.handleModel)

	mux.HandleFunc("POST /api/observations", h.handleAddObservation)
	mux.HandleFunc("GET /api/training/log", h.handleTrainingLog)
	if h.Retrainer != nil || h.Ingestion != nil {
		mux.HandleFunc("GET /api/training/status", h.handleTrainingStatus)
	}

	if h.WebSocket != nil {
		mux.HandleFunc("GET /api/ws/model", h.WebSocket)
	}
	if h.Metrics != nil {
		mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	}
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = io.WriteString(w, h.Metrics.ExportPrometheus())
}

func (h *Handlers) recordPrediction(result string) {
	if h.Metrics != nil {
		h.Metrics.IncrCounter(monitoring.MetricPredictions, monitoring.Labels{"result": result})
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok", "model_trained": false}
	if model := h.Predictor.Model(); model != nil {
		resp["model_trained"] = true
		resp["model_version"] = model.Version()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============ 车辆登记 ============

func (h *Handlers) handleListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Cars.List(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (h *Handlers) handleGetCar(w http.ResponseWriter, r *http.Request) {
	car, err := h.Cars.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *Handlers) handleCreateCar(w http.ResponseWriter, r *http.Request) {
	var in registry.CarInput
	if err := decodeJSON(r, &in); err != nil {
		h.decodeFailed(w, r, err)
		return
	}
	car, err := h.Cars.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.Header().Set("Location", "/api/cars/"+car.ID)
	writeJSON(w, http.StatusCreated, car)
}

func (h *Handlers) handleUpdateCar(w http.ResponseWriter, r *http.Request) {
	var in registry.UpdateCarInput
	if err := decodeJSON(r, &in); err != nil {
		h.decodeFailed(w, r, err)
		return
	}
	car, err := h.Cars.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (h *Handlers) handleDeleteCar(w http.ResponseWriter, r *http.Request) {
	if err := h.Cars.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============ 模型 ============

// handlePredict 请求体为裸数字或 {"mileage": n}，返回布尔值；?detail=true 时返回概率与模型版本
func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	mileage, err := readMileage(r.Body)
	if err != nil {
		h.decodeFailed(w, r, err)
		return
	}

	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		prediction, err := h.Predictor.PredictDetailed(mileage)
		if err != nil {
			h.recordPrediction("error")
			writeError(w, r, h.Logger, err)
			return
		}
		h.recordPrediction(outcome(prediction.GoodCondition))
		writeJSON(w, http.StatusOK, prediction)
		return
	}

	good, err := h.Predictor.Predict(mileage)
	if err != nil {
		h.recordPrediction("error")
		writeError(w, r, h.Logger, err)
		return
	}
	h.recordPrediction(outcome(good))
	writeJSON(w, http.StatusOK, good)
}

func outcome(good bool) string {
	if good {
		return "good"
	}
	return "bad"
}

var errMissingMileage = errors.New("mileage is required")

func readMileage(body io.Reader) (float64, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, errMissingMileage
	}

	if raw[0] == '{' {
		var req struct {
			Mileage *float64 `json:"mileage"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return 0, err
		}
		if req.Mileage == nil {
			return 0, errMissingMileage
		}
		return *req.Mileage, nil
	}

	var mileage float64
	if err := json.Unmarshal(raw, &mileage); err != nil {
		return 0, err
	}
	return mileage, nil
}

func (h *Handlers) handleTrain(w http.ResponseWriter, r *http.Request) {
	res, err := h.Trainer.Retrain(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":   res.Model.Info(),
		"metrics": res.Metrics,
	})
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	model := h.Predictor.Model()
	if model == nil {
		writeError(w, r, h.Logger, ml.ErrModelNotTrained)
		return
	}
	writeJSON(w, http.StatusOK, model.Info())
}

// ============ 观测数据 ============

func (h *Handlers) handleAddObservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mileage *float64 `json:"mileage"`
		Label   *bool    `json:"label"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.decodeFailed(w, r, err)
		return
	}
	if req.Mileage == nil || req.Label == nil {
		badRequest(w, "mileage and label are required")
		return
	}

	obs := ml.Observation{Mileage: *req.Mileage, Label: *req.Label}
	id, err := h.Observations.AddObservation(r.Context(), obs)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      id,
		"mileage": obs.Mileage,
		"label":   obs.Label,
	})
}

func (h *Handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.TrainingLog.LoadTrainingLog(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// trainingStatusResponse 训练状态
type trainingStatusResponse struct {
	Retrainer    *scheduler.Status        `json:"retrainer,omitempty"`
	Ingestion    *pipeline.IngestionStats `json:"ingestion,omitempty"`
	Cleaning     *pipeline.CleaningStats  `json:"cleaning,omitempty"`
	RecentIssues []pipeline.QualityIssue  `json:"recent_issues,omitempty"`
}

func (h *Handlers) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("issues"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "issues must be a non-negative integer")
			return
		}
		limit = n
	}

	var resp trainingStatusResponse
	if h.Retrainer != nil {
		status := h.Retrainer.Status()
		resp.Retrainer = &status
	}
	if h.Ingestion != nil {
		stats := h.Ingestion.GetStats()
		cleaning := h.Ingestion.CleaningStats()
		resp.Ingestion = &stats
		resp.Cleaning = &cleaning
		if limit > 0 {
			resp.RecentIssues = h.Ingestion.RecentIssues(limit)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) decodeFailed(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, h.Logger, err)
		return
	}
	badRequest(w, "invalid request body: "+err.Error())
}
