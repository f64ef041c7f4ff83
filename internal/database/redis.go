package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis representa a conexão ao Redis
type Redis struct {
	*redis.Client
}

// ConnectRedis estabelece a conexão ao Redis
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Redis{client}, nil
}

// Close fecha a conexão ao Redis
func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifica a saúde do Redis
func (r *Redis) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

// SetWithTTL estabelece um valor com TTL
func (r *Redis) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Client.Set(ctx, key, value, ttl).Err()
}

// Get obtém um valor
func (r *Redis) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Client.Get(ctx, key).Result()
}

// Delete elimina uma chave
func (r *Redis) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Client.Del(ctx, key).Err()
}

// Incr incrementa um contador
func (r *Redis) Incr(key string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Client.Incr(ctx, key).Result()
}

// Expire estabelece TTL para uma chave
func (r *Redis) Expire(key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Client.Expire(ctx, key, ttl).Err()
}

// AllowOperation implementa o rate limit por chamador+operação usando
// uma janela fixa de um minuto. Falha aberta: indisponibilidade do
// Redis não bloqueia o pipeline.
func (r *Redis) AllowOperation(caller, operation string, limitPerMin int) (bool, error) {
	if limitPerMin <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s:%s", caller, operation, time.Now().UTC().Format("200601021504"))

	count, err := r.Incr(key)
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := r.Expire(key, time.Minute); err != nil {
			return true, err
		}
	}

	return count <= int64(limitPerMin), nil
}

// LogStats registra estatísticas do Redis
func (r *Redis) LogStats(logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if info, err := r.Info(ctx, "stats").Result(); err == nil {
		logger.WithField("info", info).Info("Redis statistics")
	}
}
