// Package reminder はリマインダー評価のバックグラウンド実行を提供する。
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/shaho/internal/metrics"
	engine "github.com/hitoshi/shaho/internal/reminder"
)

// OrganizationLister はリマインダー評価対象の組織IDを列挙する。
type OrganizationLister interface {
	ListIDsWithReminderSettings(ctx context.Context) ([]string, error)
}

// OrganizationRunner は組織単位のリマインダー評価を実行する。
type OrganizationRunner interface {
	RunOrganization(ctx context.Context, organizationID string, opts engine.RunOptions) (engine.RunResult, error)
}

// Scheduler はリマインダー設定を持つ全組織の評価を定期実行する。
// 組織間は並列に実行し、semaphoreパターンで最大並列数を制御する。
// 同じ組織の評価が実行中の場合（別プロセスを含む）はその組織をスキップする。
type Scheduler struct {
	orgs           OrganizationLister
	runner         OrganizationRunner
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	orgs OrganizationLister,
	runner OrganizationRunner,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Scheduler{
		orgs:           orgs,
		runner:         runner,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインダースケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リマインダーサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインダースケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("リマインダーサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は対象組織を1回列挙し、並列で評価を実行する。
// 個々の組織の失敗はログに記録し、他の組織の評価は継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	orgIDs, err := s.orgs.ListIDsWithReminderSettings(ctx)
	if err != nil {
		return err
	}
	if len(orgIDs) == 0 {
		s.logger.Info("リマインダー評価対象の組織はありません")
		return nil
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runOrganization(ctx, id)
		}(orgID)
	}

	wg.Wait()

	s.logger.Info("リマインダーサイクルが完了しました",
		slog.Int("organization_count", len(orgIDs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (s *Scheduler) runOrganization(ctx context.Context, orgID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("リマインダー評価中にpanicが発生しました",
				slog.String("organization_id", orgID),
				slog.Any("panic", r),
			)
		}
	}()

	_, err := s.runner.RunOrganization(ctx, orgID, engine.RunOptions{})
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrRunInProgress):
		s.metrics.RecordOrganizationSkipped()
		s.logger.Info("評価が実行中のため組織をスキップしました",
			slog.String("organization_id", orgID),
		)
	default:
		s.logger.Error("組織のリマインダー評価に失敗しました",
			slog.String("organization_id", orgID),
			slog.String("error", err.Error()),
		)
	}
}
