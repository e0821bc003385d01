package pipeline

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"carregistry/ml"
)

// DefaultMaxMileage 默认里程上限，超过视为录入错误
const DefaultMaxMileage = 2000000.0

// maxRetainedIssues 保留的最近质量问题条数
const maxRetainedIssues = 500

// ObservationRecord 原始观测记录（CSV 一行）
type ObservationRecord struct {
	Row     int     `csv:"-"`
	Mileage float64 `csv:"mileage"`
	Label   bool    `csv:"label"`
}

func (r ObservationRecord) Observation() ml.Observation {
	return ml.Observation{Mileage: r.Mileage, Label: r.Label}
}

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(*ObservationRecord) (*ObservationRecord, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器，maxMileage <= 0 时使用默认上限
func NewDataCleaner(maxMileage float64, logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxMileage <= 0 {
		maxMileage = DefaultMaxMileage
	}
	cleaner := &DataCleaner{
		rules:  make([]CleaningRule, 0),
		logger: logger,
		issues: make([]QualityIssue, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(&FiniteMileageRule{})
	cleaner.AddRule(&NonNegativeMileageRule{})
	cleaner.AddRule(&MaxMileageRule{MaxMileage: maxMileage})
	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean 清洗数据，返回通过的观测与发现的问题
func (dc *DataCleaner) Clean(records []*ObservationRecord) ([]ml.Observation, []QualityIssue) {
	cleaned := make([]ml.Observation, 0, len(records))
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, record := range records {
		dc.stats.TotalProcessed++

		var recordIssues []QualityIssue
		for _, rule := range dc.rules {
			out, err := rule.Apply(record)
			if err != nil {
				recordIssues = append(recordIssues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Row:       record.Row,
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				continue
			}
			if out != nil {
				record = out
			}
		}

		if len(recordIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, recordIssues...)
			continue
		}
		dc.stats.Passed++
		cleaned = append(cleaned, record.Observation())
	}

	if len(issues) > 0 {
		dc.issuesLock.Lock()
		dc.issues = append(dc.issues, issues...)
		if over := len(dc.issues) - maxRetainedIssues; over > 0 {
			dc.issues = append(dc.issues[:0:0], dc.issues[over:]...)
		}
		dc.issuesLock.Unlock()
	}
	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues 获取最近的问题列表
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}
	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

// ============ 清洗规则实现 ============

// FiniteMileageRule 拒绝 NaN / Inf 里程
type FiniteMileageRule struct{}

func (r *FiniteMileageRule) Name() string { return "finite_mileage" }

func (r *FiniteMileageRule) Apply(record *ObservationRecord) (*ObservationRecord, error) {
	if math.IsNaN(record.Mileage) || math.IsInf(record.Mileage, 0) {
		return nil, fmt.Errorf("mileage %v is not a finite number", record.Mileage)
	}
	return record, nil
}

// NonNegativeMileageRule 拒绝负里程
type NonNegativeMileageRule struct{}

func (r *NonNegativeMileageRule) Name() string { return "non_negative_mileage" }

func (r *NonNegativeMileageRule) Apply(record *ObservationRecord) (*ObservationRecord, error) {
	if record.Mileage < 0 {
		return nil, fmt.Errorf("mileage %v is negative", record.Mileage)
	}
	return record, nil
}

// MaxMileageRule 拒绝超过上限的里程
type MaxMileageRule struct {
	MaxMileage float64
}

func (r *MaxMileageRule) Name() string { return "max_mileage" }

func (r *MaxMileageRule) Apply(record *ObservationRecord) (*ObservationRecord, error) {
	if record.Mileage > r.MaxMileage {
		return nil, fmt.Errorf("mileage %v exceeds limit %v", record.Mileage, r.MaxMileage)
	}
	return record, nil
}
