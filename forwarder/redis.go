package forwarder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/jd3nn1s/forzajuicer/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const redisConnectTimeout = 5 * time.Second

// RedisForwarder keeps a hash of dashboard values up to date and publishes
// the full record as JSON on a channel.
type RedisForwarder struct {
	Config config.Redis

	client *redis.Client
	queue  *queue
}

func NewRedisForwarder(ctx context.Context, cfg config.Redis) (*RedisForwarder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisConnectTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(connectCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "unable to connect to redis at %s", cfg.Address)
	}
	log.WithField("address", cfg.Address).Info("connected to redis")

	return &RedisForwarder{
		Config: cfg,
		client: client,
		queue:  newQueue("redis", config.Interval(cfg.IntervalMS)),
	}, nil
}

func (r *RedisForwarder) Close() error {
	return r.client.Close()
}

func (r *RedisForwarder) Forward(newTelemetry *juicer.Telemetry, prevTelemetry *juicer.Telemetry) error {
	r.queue.offer(newTelemetry)
	return nil
}

func (r *RedisForwarder) Start(ctx context.Context) error {
	return r.queue.run(ctx, func(t *juicer.Telemetry) error {
		return r.send(ctx, t)
	})
}

func (r *RedisForwarder) send(ctx context.Context, t *juicer.Telemetry) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "unable to marshal telemetry")
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.Config.Key, telemetryFields(t))
	if r.Config.Channel != "" {
		pipe.Publish(ctx, r.Config.Channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "unable to send telemetry to redis")
	}
	return nil
}

// telemetryFields is the flat subset of a record a dashboard reads from the
// hash.
func telemetryFields(t *juicer.Telemetry) map[string]interface{} {
	return map[string]interface{}{
		"race-on":      t.IsRaceOn,
		"timestamp-ms": t.TimestampMS,
		"rpm":          t.EngineRPM.Current,
		"rpm:max":      t.EngineRPM.Max,
		"rpm:idle":     t.EngineRPM.Idle,
		"speed":        t.Car.Speed,
		"power":        t.Car.Power,
		"torque":       t.Car.Torque,
		"boost":        t.Car.Boost,
		"fuel":         t.Car.Fuel,
		"distance":     t.Car.DistanceTraveled,
		"gear":         t.Gear,
		"accel":        t.Accel,
		"brake":        t.Brake,
		"steer":        t.Steer,
		"position":     t.RacePosition,
		"lap":          t.LapStats.LapNumber,
		"lap:current":  t.LapStats.CurrentLap,
		"lap:last":     t.LapStats.LastLap,
		"lap:best":     t.LapStats.BestLap,
		"car:ordinal":  t.Car.Ordinal,
		"car:class":    t.Car.Class,
		"car:pi":       t.Car.PI,
	}
}
