package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/engine"
)

// =============================================================================
// SMS DISPATCH - External collaborator, interface only
// =============================================================================

// SMSDispatcher delivers a labor request to a worker's phone. The gateway
// itself lives outside this repository; implementations here only log.
type SMSDispatcher interface {
	// SendRequest delivers the availability question for one request.
	// The reply link embeds the request token.
	SendRequest(ctx context.Context, worker engine.Worker, req engine.LaborRequest, callTime engine.CallTime) error
}

// LogDispatcher records would-be sends instead of delivering them.
// Used in tests and local runs.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d *LogDispatcher) SendRequest(_ context.Context, worker engine.Worker, req engine.LaborRequest, callTime engine.CallTime) error {
	d.Logger.Info("sms request dispatched",
		zap.String("worker_id", string(worker.ID)),
		zap.String("phone", worker.Phone),
		zap.String("request_id", string(req.ID)),
		zap.String("token", req.Token),
		zap.String("call_time", callTime.Name),
		zap.Time("starts_at", callTime.StartsAt),
	)
	return nil
}
