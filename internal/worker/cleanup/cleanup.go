// Package cleanup は失効台帳の保持期間管理ジョブを提供する。
// クレデンシャルの有効期限から猶予期間を過ぎた失効記録を定期的に削除する。
// 期限切れのクレデンシャルは署名検証の時点で拒否されるため、記録を消しても再利用はできない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/confportal/internal/repository"
)

// DefaultGrace は有効期限を過ぎてから記録を保持する猶予期間。
const DefaultGrace = time.Hour

// PurgeRecorder は削除件数の記録先。metrics.Collectorが満たす。
type PurgeRecorder interface {
	RecordRevocationsPurged(count int64)
}

// CleanupJob は保持期間を過ぎた失効記録の削除ジョブ。
// 冪等な削除処理のため、複数回・複数プロセスから実行しても結果は変わらない。
type CleanupJob struct {
	purger   repository.RevocationPurger
	recorder PurgeRecorder
	logger   *slog.Logger
	Grace    time.Duration // 有効期限からの猶予期間（デフォルト: 1時間）

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnil可。
func NewCleanupJob(purger repository.RevocationPurger, recorder PurgeRecorder, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
		Grace:    DefaultGrace,
		now:      time.Now,
	}
}

// Run は有効期限が now - Grace より前の失効記録を削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	before := start.Add(-j.Grace)

	deletedCount, err := j.purger.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("失効台帳のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("grace", j.Grace),
		)
		return fmt.Errorf("失効台帳のクリーンアップに失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordRevocationsPurged(deletedCount)
	}

	j.logger.Info("失効台帳のクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("grace", j.Grace),
		slog.Time("before", before),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	run := func() {
		if err := j.Run(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("cleanup job failed, retrying at next interval",
				slog.String("error", err.Error()),
			)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
