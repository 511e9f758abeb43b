package topic

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"

	logx "remindbot/pkg/logx"
)

// snsAPI is the subset of the SNS client the publisher calls.
type snsAPI interface {
	PublishWithContext(ctx aws.Context, in *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error)
}

type snsPublisher struct {
	client  snsAPI
	arn     string
	subject string
	log     logx.Logger
	closed  atomic.Bool
}

func openSNS(cfg Config, log logx.Logger) (*snsPublisher, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		awsCfg.Endpoint = aws.String(ep)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("topic: create aws session: %w", err)
	}
	log.Info("sns publisher ready", logx.String("topic_arn", cfg.ARN), logx.String("region", cfg.Region))
	return newSNSPublisher(sns.New(sess), cfg, log), nil
}

func newSNSPublisher(client snsAPI, cfg Config, log logx.Logger) *snsPublisher {
	return &snsPublisher{client: client, arn: cfg.ARN, subject: strings.TrimSpace(cfg.Subject), log: log}
}

func (p *snsPublisher) Publish(ctx context.Context, message string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	in := &sns.PublishInput{
		TopicArn: aws.String(p.arn),
		Message:  aws.String(message),
	}
	if p.subject != "" {
		in.Subject = aws.String(p.subject)
	}
	out, err := p.client.PublishWithContext(ctx, in)
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	p.log.Debug("sns message published", logx.String("message_id", aws.StringValue(out.MessageId)))
	return nil
}

func (p *snsPublisher) Close() error {
	p.closed.Store(true)
	return nil
}
