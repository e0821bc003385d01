// Package scheduler wires the observation store, the training pipeline and
// the prediction service together and runs retraining on demand or on an
// interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"carregistry/ml"
	"carregistry/monitoring"
)

// ObservationSource 提供完整的观测集
type ObservationSource interface {
	ListObservations(ctx context.Context) ([]ml.Observation, error)
}

// TrainingRecorder 记录每次训练结果
type TrainingRecorder interface {
	RecordTraining(ctx context.Context, info ml.Info, metrics ml.Metrics) error
}

// Notifier 接收模型事件
type Notifier interface {
	Publish(event monitoring.ModelEvent) error
}

// Result 一次成功训练的结果
type Result struct {
	Model   *ml.TrainedModel
	Metrics ml.Metrics
}

// Retrainer 重训练协调器，同一时刻最多一次训练
type Retrainer struct {
	source    ObservationSource
	pipeline  *ml.TrainingPipeline
	predictor *ml.PredictionService
	recorder  TrainingRecorder
	notifier  Notifier
	metrics   *monitoring.MetricsCollector
	logger    *zap.Logger

	trainMu sync.Mutex

	mu            sync.RWMutex
	running       bool
	lastExecution time.Time
	lastError     error
	runs          int64
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Option 可选依赖
type Option func(*Retrainer)

func WithRecorder(r TrainingRecorder) Option { return func(rt *Retrainer) { rt.recorder = r } }

func WithNotifier(n Notifier) Option { return func(rt *Retrainer) { rt.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(rt *Retrainer) { rt.logger = l } }

func WithMetrics(m *monitoring.MetricsCollector) Option { return func(rt *Retrainer) { rt.metrics = m } }

// NewRetrainer 创建重训练协调器
func NewRetrainer(source ObservationSource, pipeline *ml.TrainingPipeline, predictor *ml.PredictionService, opts ...Option) *Retrainer {
	rt := &Retrainer{
		source:    source,
		pipeline:  pipeline,
		predictor: predictor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Retrain 加载观测、训练、评估并替换当前模型。失败时保留旧模型。
func (r *Retrainer) Retrain(ctx context.Context) (Result, error) {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()

	start := time.Now()
	res, err := r.retrain(ctx)
	r.observe(res, err, time.Since(start))

	r.mu.Lock()
	r.lastExecution = time.Now()
	r.lastError = err
	r.runs++
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("retrain failed", zap.Error(err))
		r.publish(monitoring.ModelEvent{Type: monitoring.TrainingFailed, Error: err.Error()})
		return Result{}, err
	}

	info := res.Model.Info()
	r.logger.Info("model trained",
		zap.String("version", info.Version),
		zap.Int("samples", info.Samples),
		zap.Int("epochs", info.Epochs),
		zap.Float64("min_mileage", info.MinMileage),
		zap.Float64("max_mileage", info.MaxMileage),
		zap.Float64("accuracy", res.Metrics.Accuracy),
		zap.Float64("log_loss", res.Metrics.LogLoss))
	metrics := res.Metrics
	r.publish(monitoring.ModelEvent{Type: monitoring.ModelTrained, Model: &info, Metrics: &metrics})
	return res, nil
}

func (r *Retrainer) retrain(ctx context.Context) (Result, error) {
	observations, err := r.source.ListObservations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load observations: %w", err)
	}
	model, err := r.pipeline.Train(observations)
	if err != nil {
		return Result{}, err
	}
	metrics, err := ml.Evaluate(model, observations)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate model: %w", err)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordTraining(ctx, model.Info(), metrics); err != nil {
			// 记录失败不影响上线新模型
			r.logger.Warn("record training failed", zap.Error(err))
		}
	}
	if err := r.predictor.SetModel(model); err != nil {
		return Result{}, err
	}
	return Result{Model: model, Metrics: metrics}, nil
}

func (r *Retrainer) observe(res Result, err error, took time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.Observe(monitoring.MetricRetrainDuration, took.Seconds(), nil)
	if err != nil {
		r.metrics.IncrCounter(monitoring.MetricRetrains, monitoring.Labels{"result": "failure"})
		return
	}
	r.metrics.IncrCounter(monitoring.MetricRetrains, monitoring.Labels{"result": "success"})
	r.metrics.SetGauge(monitoring.MetricModelSamples, float64(res.Model.Samples()), nil)
	r.metrics.SetGauge(monitoring.MetricModelAccuracy, res.Metrics.Accuracy, nil)
	r.metrics.SetGauge(monitoring.MetricModelTrainedUnix, float64(res.Model.TrainedAt().Unix()), nil)
}

func (r *Retrainer) publish(event monitoring.ModelEvent) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(event); err != nil {
		r.logger.Warn("publish model event failed", zap.Error(err))
	}
}

// Start 按固定间隔重训练，interval <= 0 时不启动
func (r *Retrainer) Start(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("retrainer is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(ctx, interval)

	r.logger.Info("periodic retraining started", zap.Duration("interval", interval))
	return nil
}

func (r *Retrainer) loop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 错误已在 Retrain 中记录，循环继续
			_, _ = r.Retrain(ctx)
		}
	}
}

// Stop 停止定时重训练并等待进行中的训练结束
func (r *Retrainer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("periodic retraining stopped")
}

// Status 调度状态
type Status struct {
	Running       bool      `json:"running"`
	Runs          int64     `json:"runs"`
	LastExecution time.Time `json:"last_execution"`
	LastError     string    `json:"last_error,omitempty"`
}

func (r *Retrainer) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Status{Running: r.running, Runs: r.runs, LastExecution: r.lastExecution}
	if r.lastError != nil {
		s.LastError = r.lastError.Error()
	}
	return s
}
