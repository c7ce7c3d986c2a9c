// store.go — 线程活动、审查链接与本地偏好的持久化。
// 配置了 Postgres 连接串时写库, 否则退化为进程内存表 (重启丢失)。
// 两种模式接口一致, 上层不感知。
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/codex-monitor/go-monitor/pkg/errors"
	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// ReviewLink 一条持久化的分离式审查链接。
type ReviewLink struct {
	WorkspaceID    string
	ReviewThreadID string
	ParentThreadID string
}

// Store 持久化入口。pool 为 nil 时使用内存表。
type Store struct {
	pool   *pgxpool.Pool
	schema string

	mu          sync.Mutex
	memActivity map[string]map[string]int64 // ws -> thread -> ts
	memLinks    map[string]ReviewLink       // review thread id -> link
	memNames    map[string]string           // ws|thread -> name
	memPins     map[string]int64            // ws|thread -> pinned_at
}

// New 创建 Store。pool 可以为 nil。
func New(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{
		pool:        pool,
		schema:      schema,
		memActivity: map[string]map[string]int64{},
		memLinks:    map[string]ReviewLink{},
		memNames:    map[string]string{},
		memPins:     map[string]int64{},
	}
}

// Init 建表。内存模式是 no-op。
func (s *Store) Init(ctx context.Context) error {
	if s.pool == nil {
		logger.Info("持久化使用内存表", logger.FieldComponent, "store")
		return nil
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.monitor_thread_activity (
			workspace_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			last_activity_at BIGINT NOT NULL,
			PRIMARY KEY (workspace_id, thread_id)
		)`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.monitor_review_links (
			review_thread_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			parent_thread_id TEXT NOT NULL
		)`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.monitor_thread_names (
			workspace_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (workspace_id, thread_id)
		)`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.monitor_thread_pins (
			workspace_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			pinned_at BIGINT NOT NULL,
			PRIMARY KEY (workspace_id, thread_id)
		)`, s.schema),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return apperrors.Wrap(err, "Store.Init", "create table")
		}
	}
	return nil
}

// Close 释放连接池。
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ========================================
// 线程活动
// ========================================

// SaveThreadActivity 记录线程最近活动时间 (Unix 毫秒)。
func (s *Store) SaveThreadActivity(ctx context.Context, workspaceID, threadID string, ts int64) error {
	if workspaceID == "" || threadID == "" {
		return nil
	}
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		byThread := s.memActivity[workspaceID]
		if byThread == nil {
			byThread = map[string]int64{}
			s.memActivity[workspaceID] = byThread
		}
		byThread[threadID] = ts
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.monitor_thread_activity (workspace_id, thread_id, last_activity_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, thread_id) DO UPDATE SET last_activity_at = EXCLUDED.last_activity_at`,
		s.schema), workspaceID, threadID, ts)
	if err != nil {
		return apperrors.Wrap(err, "Store.SaveThreadActivity", "upsert")
	}
	return nil
}

// LoadThreadActivity 读全部活动表 ws -> thread -> ts。
func (s *Store) LoadThreadActivity(ctx context.Context) (map[string]map[string]int64, error) {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make(map[string]map[string]int64, len(s.memActivity))
		for ws, byThread := range s.memActivity {
			cp := make(map[string]int64, len(byThread))
			for id, ts := range byThread {
				cp[id] = ts
			}
			out[ws] = cp
		}
		return out, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT workspace_id, thread_id, last_activity_at FROM %s.monitor_thread_activity`, s.schema))
	if err != nil {
		return nil, apperrors.Wrap(err, "Store.LoadThreadActivity", "query")
	}
	defer rows.Close()
	out := map[string]map[string]int64{}
	for rows.Next() {
		var ws, id string
		var ts int64
		if err := rows.Scan(&ws, &id, &ts); err != nil {
			return nil, apperrors.Wrap(err, "Store.LoadThreadActivity", "scan")
		}
		if out[ws] == nil {
			out[ws] = map[string]int64{}
		}
		out[ws][id] = ts
	}
	return out, rows.Err()
}

// ========================================
// 分离式审查链接
// ========================================

// SaveReviewLink 持久化审查线程 -> 父线程链接。
func (s *Store) SaveReviewLink(ctx context.Context, link ReviewLink) error {
	if link.ReviewThreadID == "" || link.ParentThreadID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "Store.SaveReviewLink", "empty thread id")
	}
	if s.pool == nil {
		s.mu.Lock()
		s.memLinks[link.ReviewThreadID] = link
		s.mu.Unlock()
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.monitor_review_links (review_thread_id, workspace_id, parent_thread_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (review_thread_id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			parent_thread_id = EXCLUDED.parent_thread_id`,
		s.schema), link.ReviewThreadID, link.WorkspaceID, link.ParentThreadID)
	if err != nil {
		return apperrors.Wrap(err, "Store.SaveReviewLink", "upsert")
	}
	return nil
}

// LoadReviewLinks 读全部审查链接。
func (s *Store) LoadReviewLinks(ctx context.Context) ([]ReviewLink, error) {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]ReviewLink, 0, len(s.memLinks))
		for _, l := range s.memLinks {
			out = append(out, l)
		}
		return out, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT review_thread_id, workspace_id, parent_thread_id FROM %s.monitor_review_links`, s.schema))
	if err != nil {
		return nil, apperrors.Wrap(err, "Store.LoadReviewLinks", "query")
	}
	defer rows.Close()
	var out []ReviewLink
	for rows.Next() {
		var l ReviewLink
		if err := rows.Scan(&l.ReviewThreadID, &l.WorkspaceID, &l.ParentThreadID); err != nil {
			return nil, apperrors.Wrap(err, "Store.LoadReviewLinks", "scan")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteReviewLink 删除链接 (审查线程归档后)。
func (s *Store) DeleteReviewLink(ctx context.Context, reviewThreadID string) error {
	if s.pool == nil {
		s.mu.Lock()
		delete(s.memLinks, reviewThreadID)
		s.mu.Unlock()
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s.monitor_review_links WHERE review_thread_id = $1`, s.schema), reviewThreadID)
	if err != nil {
		return apperrors.Wrap(err, "Store.DeleteReviewLink", "delete")
	}
	return nil
}

// ========================================
// 自定义名与置顶
// ========================================

func scopedKey(workspaceID, threadID string) string {
	return workspaceID + "|" + threadID
}

// SaveCustomName 持久化自定义线程名。name == "" 表示清除。
func (s *Store) SaveCustomName(ctx context.Context, workspaceID, threadID, name string) error {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if name == "" {
			delete(s.memNames, scopedKey(workspaceID, threadID))
		} else {
			s.memNames[scopedKey(workspaceID, threadID)] = name
		}
		return nil
	}
	if name == "" {
		_, err := s.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s.monitor_thread_names WHERE workspace_id = $1 AND thread_id = $2`, s.schema),
			workspaceID, threadID)
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.monitor_thread_names (workspace_id, thread_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, thread_id) DO UPDATE SET name = EXCLUDED.name`,
		s.schema), workspaceID, threadID, name)
	if err != nil {
		return apperrors.Wrap(err, "Store.SaveCustomName", "upsert")
	}
	return nil
}

// LoadCustomNames 读全部自定义名, 键为 workspace|thread。
func (s *Store) LoadCustomNames(ctx context.Context) (map[string]string, error) {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make(map[string]string, len(s.memNames))
		for k, v := range s.memNames {
			out[k] = v
		}
		return out, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT workspace_id, thread_id, name FROM %s.monitor_thread_names`, s.schema))
	if err != nil {
		return nil, apperrors.Wrap(err, "Store.LoadCustomNames", "query")
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var ws, id, name string
		if err := rows.Scan(&ws, &id, &name); err != nil {
			return nil, apperrors.Wrap(err, "Store.LoadCustomNames", "scan")
		}
		out[scopedKey(ws, id)] = name
	}
	return out, rows.Err()
}

// SaveThreadPin 置顶时间戳。ts == 0 表示取消置顶。
func (s *Store) SaveThreadPin(ctx context.Context, workspaceID, threadID string, ts int64) error {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ts == 0 {
			delete(s.memPins, scopedKey(workspaceID, threadID))
		} else {
			s.memPins[scopedKey(workspaceID, threadID)] = ts
		}
		return nil
	}
	if ts == 0 {
		_, err := s.pool.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s.monitor_thread_pins WHERE workspace_id = $1 AND thread_id = $2`, s.schema),
			workspaceID, threadID)
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s.monitor_thread_pins (workspace_id, thread_id, pinned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, thread_id) DO UPDATE SET pinned_at = EXCLUDED.pinned_at`,
		s.schema), workspaceID, threadID, ts)
	if err != nil {
		return apperrors.Wrap(err, "Store.SaveThreadPin", "upsert")
	}
	return nil
}

// LoadThreadPins 读全部置顶, 键为 workspace|thread。
func (s *Store) LoadThreadPins(ctx context.Context) (map[string]int64, error) {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make(map[string]int64, len(s.memPins))
		for k, v := range s.memPins {
			out[k] = v
		}
		return out, nil
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT workspace_id, thread_id, pinned_at FROM %s.monitor_thread_pins`, s.schema))
	if err != nil {
		return nil, apperrors.Wrap(err, "Store.LoadThreadPins", "query")
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var ws, id string
		var ts int64
		if err := rows.Scan(&ws, &id, &ts); err != nil {
			return nil, apperrors.Wrap(err, "Store.LoadThreadPins", "scan")
		}
		out[scopedKey(ws, id)] = ts
	}
	return out, rows.Err()
}
