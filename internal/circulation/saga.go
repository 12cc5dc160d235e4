// internal/circulation/saga.go
package circulation

import (
	"context"
	"log/slog"
)

// saga records the undo step of every remote write that succeeded so a
// later failure can roll them back in reverse order.
type saga struct {
	name   string
	logger *slog.Logger
	undo   []func(context.Context) error
}

func (s *saga) onFailure(fn func(context.Context) error) {
	s.undo = append(s.undo, fn)
}

// compensate runs even if ctx was cancelled, since the forward steps it
// reverts already happened remotely.
func (s *saga) compensate(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.logger.Warn(logMsgCompensating, logAttrSaga, s.name, logAttrError, cause)
		if err := s.undo[i](ctx); err != nil {
			s.logger.Error(logMsgCompensationFailed, logAttrSaga, s.name, logAttrError, err)
		}
	}
	s.undo = nil
}
