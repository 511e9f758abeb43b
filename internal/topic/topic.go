// Package topic fans reminder messages out to a cloud notification topic.
package topic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

var (
	ErrUnknownDriver = errors.New("topic: unknown driver")
	ErrClosed        = errors.New("topic: publisher closed")
)

const (
	DriverSNS   = "sns"
	DriverRedis = "redis"
	DriverNone  = "none"
)

// Publisher sends one message to the configured topic.
type Publisher interface {
	Publish(ctx context.Context, message string) error
	Close() error
}

type Config struct {
	Driver string

	// SNS
	ARN             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Subject         string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	DialTimeout time.Duration
}

func (c Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d == "" {
		return DriverSNS
	}
	return d
}

// Validate reports every missing field for the selected driver.
func (c Config) Validate() error {
	var errs []error
	switch c.driver() {
	case DriverSNS:
		if strings.TrimSpace(c.ARN) == "" {
			errs = append(errs, errors.New("topic.arn is required"))
		}
		if strings.TrimSpace(c.Region) == "" {
			errs = append(errs, errors.New("topic.region is required"))
		}
		if strings.TrimSpace(c.AccessKeyID) == "" {
			errs = append(errs, errors.New("topic.access_key_id is required"))
		}
		if strings.TrimSpace(c.SecretAccessKey) == "" {
			errs = append(errs, errors.New("topic.secret_access_key is required"))
		}
	case DriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("topic.redis_addr is required"))
		}
		if strings.TrimSpace(c.RedisChannel) == "" {
			errs = append(errs, errors.New("topic.redis_channel is required"))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownDriver, c.Driver))
	}
	return errors.Join(errs...)
}

// Open builds the publisher for cfg.Driver (default "sns").
func Open(cfg Config, log logx.Logger) (Publisher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With(logx.String("driver", cfg.driver()))
	switch cfg.driver() {
	case DriverSNS:
		return openSNS(cfg, log)
	case DriverRedis:
		return openRedis(cfg, log)
	case DriverNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string) error { return nil }
func (Nop) Close() error                          { return nil }
