package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"carregistry/ml"
)

// ErrEmptyImport 导入后没有任何可用观测
var ErrEmptyImport = errors.New("import produced no usable observations")

// ObservationStore 观测存储接口
type ObservationStore interface {
	ReplaceObservations(ctx context.Context, observations []ml.Observation) error
}

// ImportReport 单次导入结果
type ImportReport struct {
	Source   string         `json:"source"`
	Read     int            `json:"read"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Issues   []QualityIssue `json:"issues,omitempty"`
}

// IngestionStats 摄取统计
type IngestionStats struct {
	Imports       int64     `json:"imports"`
	FailedImports int64     `json:"failed_imports"`
	TotalAccepted int64     `json:"total_accepted"`
	LastImport    time.Time `json:"last_import"`
}

// Ingester 从 CSV 导入历史观测，清洗后整体替换存储中的观测集
type Ingester struct {
	cleaner *DataCleaner
	store   ObservationStore
	logger  *zap.Logger

	stats     IngestionStats
	statsLock sync.RWMutex
}

// NewIngester 创建导入器
func NewIngester(cleaner *DataCleaner, store ObservationStore, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleaner == nil {
		cleaner = NewDataCleaner(0, logger)
	}
	return &Ingester{cleaner: cleaner, store: store, logger: logger}
}

// ImportFile 导入 CSV 文件（表头 mileage,label）
func (in *Ingester) ImportFile(ctx context.Context, path string) (ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		in.recordFailure()
		return ImportReport{Source: path}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	report, err := in.Import(ctx, f)
	report.Source = path
	return report, err
}

// Import 从任意 reader 导入
func (in *Ingester) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	records, err := ParseObservations(r)
	if err != nil {
		in.recordFailure()
		return ImportReport{}, err
	}

	observations, issues := in.cleaner.Clean(records)
	report := ImportReport{
		Read:     len(records),
		Accepted: len(observations),
		Rejected: len(records) - len(observations),
		Issues:   issues,
	}
	if len(observations) == 0 {
		in.recordFailure()
		return report, ErrEmptyImport
	}

	if err := in.store.ReplaceObservations(ctx, observations); err != nil {
		in.recordFailure()
		return report, fmt.Errorf("store observations: %w", err)
	}

	in.statsLock.Lock()
	in.stats.Imports++
	in.stats.TotalAccepted += int64(len(observations))
	in.stats.LastImport = time.Now()
	in.statsLock.Unlock()

	in.logger.Info("observations imported",
		zap.Int("read", report.Read),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected))
	return report, nil
}

// ParseObservations 解析 CSV，Row 为文件中的行号（表头为第 1 行）
func ParseObservations(r io.Reader) ([]*ObservationRecord, error) {
	records := make([]*ObservationRecord, 0)
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parse observations csv: %w", err)
	}
	for i, rec := range records {
		rec.Row = i + 2
	}
	return records, nil
}

// GetStats 获取摄取统计
func (in *Ingester) GetStats() IngestionStats {
	in.statsLock.RLock()
	defer in.statsLock.RUnlock()
	return in.stats
}

// CleaningStats 获取清洗统计
func (in *Ingester) CleaningStats() CleaningStats {
	return in.cleaner.GetStats()
}

// RecentIssues 获取最近 limit 条质量问题
func (in *Ingester) RecentIssues(limit int) []QualityIssue {
	return in.cleaner.GetIssues(limit)
}

func (in *Ingester) recordFailure() {
	in.statsLock.Lock()
	in.stats.FailedImports++
	in.statsLock.Unlock()
}
