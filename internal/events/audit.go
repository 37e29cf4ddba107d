package events

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aishi/internal/logging"
)

// AuditSink appends events to a rotated JSON audit log.
type AuditSink struct {
	logger *zap.Logger
	closer func() error
}

// NewAuditSink writes to path, rotating according to cfg. Audit entries are
// always written at info level.
func NewAuditSink(path string, cfg logging.Config) *AuditSink {
	rot := logging.Rotator(path, cfg)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(logging.EncoderConfig()),
		zapcore.AddSync(rot),
		zapcore.InfoLevel,
	)
	return &AuditSink{logger: zap.New(core), closer: rot.Close}
}

// NewAuditSinkWithLogger writes audit entries through an existing logger.
func NewAuditSinkWithLogger(logger *zap.Logger) *AuditSink {
	return &AuditSink{logger: logger, closer: func() error { return nil }}
}

func (a *AuditSink) Publish(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID.String()),
		zap.String("event", ev.Name),
		zap.Uint64("token_id", ev.TokenID),
		zap.Time("at", ev.At),
	}
	switch ev.Name {
	case NameTransfer:
		fields = append(fields,
			zap.String("from", ev.From.String()),
			zap.String("to", ev.To.String()),
		)
	default:
		fields = append(fields, zap.String("owner", ev.Owner.String()))
	}

	a.logger.Info("audit", fields...)
	return nil
}

func (a *AuditSink) Close() error {
	_ = a.logger.Sync()
	return a.closer()
}
