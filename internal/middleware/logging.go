package middleware

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

type logging struct {
	log logger.FieldLogger
}

// NewLogging logs every round trip at debug level and failures at info.
func NewLogging(l logger.FieldLogger) Middleware {
	if l == nil {
		l = logger.StandardLogger()
	}
	return &logging{log: l}
}

func (l *logging) Name() string { return NameLogging }

func (l *logging) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	start := time.Now()
	resp, err := next(ctx, req)

	entry := l.log.WithFields(logger.Fields{
		"method":   req.Method,
		"id":       req.ID,
		"duration": time.Since(start).Round(time.Microsecond),
	})
	switch {
	case err != nil:
		entry.WithError(err).Info("rpc call failed")
	case resp != nil && resp.Error != nil:
		entry.WithField("code", resp.Error.Code).Info("rpc error response")
	default:
		entry.Debug("rpc call")
	}
	return resp, err
}
