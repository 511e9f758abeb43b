package topic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sns"

	logx "remindbot/pkg/logx"
)

type fakeSNS struct {
	in  []*sns.PublishInput
	err error
}

func (f *fakeSNS) PublishWithContext(ctx aws.Context, in *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error) {
	f.in = append(f.in, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "sns ok", cfg: Config{ARN: "arn:aws:sns:us-east-1:1:t", Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s"}},
		{name: "sns missing arn", cfg: Config{Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s"}, wantErr: "topic.arn"},
		{name: "sns missing secret", cfg: Config{ARN: "a", Region: "r", AccessKeyID: "k"}, wantErr: "topic.secret_access_key is required"},
		{name: "sns missing key id", cfg: Config{ARN: "a", Region: "r", SecretAccessKey: "s"}, wantErr: "topic.access_key_id is required"},
		{name: "sns no credentials", cfg: Config{ARN: "a", Region: "r"}, wantErr: "topic.access_key_id is required"},
		{name: "redis ok", cfg: Config{Driver: "redis", RedisAddr: "localhost:6379", RedisChannel: "reminders"}},
		{name: "redis missing channel", cfg: Config{Driver: "Redis", RedisAddr: "localhost:6379"}, wantErr: "redis_channel"},
		{name: "none", cfg: Config{Driver: "none"}},
		{name: "unknown", cfg: Config{Driver: "kafka"}, wantErr: "unknown driver"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mqtt"}, logx.Nop())
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
	p, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("open none: %v", err)
	}
	if err := p.Publish(context.Background(), "x"); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestSNSPublish(t *testing.T) {
	f := &fakeSNS{}
	p := newSNSPublisher(f, Config{ARN: "arn:topic", Subject: "Reminder"}, logx.Nop())

	if err := p.Publish(context.Background(), "Reminder:\n\nhello"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(f.in) != 1 {
		t.Fatalf("calls = %d", len(f.in))
	}
	in := f.in[0]
	if aws.StringValue(in.TopicArn) != "arn:topic" || aws.StringValue(in.Message) != "Reminder:\n\nhello" || aws.StringValue(in.Subject) != "Reminder" {
		t.Fatalf("input = %+v", in)
	}

	f.err = errors.New("throttled")
	if err := p.Publish(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("err = %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err after close = %v", err)
	}
}
