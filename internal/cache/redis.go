package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pico-faultsim/internal/models"
)

// RedisCache выгрузка отчетов диагностики в Redis
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

// NewRedisCache создает новый Redis кэш. Нулевой ttl хранит отчеты бессрочно.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 1,
		MaxRetries:   3,
	})

	ctx := context.Background()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

// ReportKey ключ отчета
func ReportKey(scenario, runID string) string {
	return fmt.Sprintf("report:%s:%s", scenario, runID)
}

// StoreReport сохраняет отчет и индексирует его по времени.
// Отчеты с обнаруженными неисправностями хранятся дольше.
func (r *RedisCache) StoreReport(report models.Report) error {
	key := ReportKey(report.Scenario, report.RunID)

	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	ttl := r.ttl
	if report.Status == models.StatusFaultDetected {
		ttl = r.ttl * 24
	}

	score := float64(report.Timestamp.UnixNano())
	listKey := fmt.Sprintf("reports:%s", report.Scenario)
	counterKey := fmt.Sprintf("runs:%s:%s", report.Scenario, report.Status)

	pipe := r.client.Pipeline()
	pipe.Set(r.ctx, key, jsonData, ttl)
	pipe.ZAdd(r.ctx, listKey, redis.Z{Score: score, Member: key})
	pipe.Incr(r.ctx, counterKey)
	if ttl > 0 {
		// EXPIRE с нулем удаляет ключ сразу
		pipe.Expire(r.ctx, listKey, ttl)
	}
	if report.Status == models.StatusFaultDetected {
		faultKey := fmt.Sprintf("faults:%s", report.Scenario)
		pipe.ZAdd(r.ctx, faultKey, redis.Z{Score: score, Member: key})
		if ttl > 0 {
			pipe.Expire(r.ctx, faultKey, ttl)
		}
	}

	_, err = pipe.Exec(r.ctx)
	return err
}

// RecentReports ключи последних отчетов сценария, новые первыми
func (r *RedisCache) RecentReports(scenario string, limit int) ([]string, error) {
	return r.recent(fmt.Sprintf("reports:%s", scenario), limit)
}

// RecentFaults ключи последних отчетов с обнаруженными неисправностями
func (r *RedisCache) RecentFaults(scenario string, limit int) ([]string, error) {
	return r.recent(fmt.Sprintf("faults:%s", scenario), limit)
}

func (r *RedisCache) recent(listKey string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := r.client.ZRevRange(r.ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	return results, nil
}

// GetReport читает отчет по ключу
func (r *RedisCache) GetReport(key string) (*models.Report, error) {
	data, err := r.client.Get(r.ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", key, err)
	}
	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// GetCounter получает значение счетчика прогонов
func (r *RedisCache) GetCounter(scenario string, status models.Status) (int64, error) {
	val, err := r.client.Get(r.ctx, fmt.Sprintf("runs:%s:%s", scenario, status)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

// GetStats возвращает статистику Redis
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
