// Package ingest applies queued punches and inspection results. The api and the
// worker share it so both queue backends behave the same way.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"opsreport/internal/attendance"
	"opsreport/internal/inspection"
	"opsreport/internal/metrics"
	"opsreport/internal/queue"
)

// Outcomes recorded per message.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeStored   = "stored"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	OutcomeUnknown  = "unknown"
)

// ErrUnknownType is returned for messages of an unhandled type.
var ErrUnknownType = errors.New("unknown message type")

// PunchStore is the punch data the processor finalizes.
type PunchStore interface {
	GetPunch(ctx context.Context, id string) (attendance.Punch, error)
	DeviceExists(ctx context.Context, deviceID string) (bool, error)
	UpdatePunchStatus(ctx context.Context, id, status string) error
}

// InspectionRecorder persists one inspection submission.
type InspectionRecorder interface {
	Record(ctx context.Context, sub inspection.Submission) (inspection.Event, error)
}

// Processor handles queue messages.
type Processor struct {
	punches     PunchStore
	inspections InspectionRecorder
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewProcessor wires a processor.
func NewProcessor(punches PunchStore, inspections InspectionRecorder, logger *zap.Logger, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{punches: punches, inspections: inspections, logger: logger, metrics: m}
}

// Handle applies one message and returns its outcome.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) (string, error) {
	var (
		outcome string
		err     error
	)
	switch msg.Type {
	case queue.TypePunch:
		outcome, err = p.handlePunch(ctx, string(msg.Body))
	case queue.TypeInspection:
		outcome, err = p.handleInspection(ctx, msg.Body)
	default:
		outcome, err = OutcomeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	p.metrics.QueueMessage(msg.Type, outcome)
	return outcome, err
}

func (p *Processor) handlePunch(ctx context.Context, id string) (string, error) {
	punch, err := p.punches.GetPunch(ctx, id)
	if err != nil {
		if errors.Is(err, attendance.ErrPunchNotFound) {
			return OutcomeInvalid, err
		}
		return OutcomeFailed, fmt.Errorf("get punch %s: %w", id, err)
	}
	if punch.Status != attendance.PunchPending {
		return OutcomeSkipped, nil
	}

	known, err := p.punches.DeviceExists(ctx, punch.DeviceID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("lookup device %s: %w", punch.DeviceID, err)
	}
	status, outcome := attendance.PunchAccepted, OutcomeAccepted
	if !known {
		status, outcome = attendance.PunchRejected, OutcomeRejected
	}
	if err := p.punches.UpdatePunchStatus(ctx, id, status); err != nil {
		return OutcomeFailed, fmt.Errorf("update punch %s: %w", id, err)
	}
	return outcome, nil
}

func (p *Processor) handleInspection(ctx context.Context, body []byte) (string, error) {
	var sub inspection.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return OutcomeInvalid, fmt.Errorf("decode inspection: %w", err)
	}
	if _, err := p.inspections.Record(ctx, sub); err != nil {
		if inspection.IsInvalid(err) {
			return OutcomeInvalid, err
		}
		return OutcomeFailed, err
	}
	return OutcomeStored, nil
}

// Run consumes q until ctx is done. Failed messages are logged and dropped.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	p.logger.Info("ingest started")
	for msg := range messages {
		start := time.Now()
		outcome, err := p.Handle(ctx, msg)
		fields := []zap.Field{
			zap.String("type", msg.Type),
			zap.String("outcome", outcome),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			p.logger.Warn("ingest message failed", append(fields, zap.Error(err))...)
			continue
		}
		p.logger.Debug("ingest message handled", fields...)
	}
	p.logger.Info("ingest stopped")
	return nil
}
