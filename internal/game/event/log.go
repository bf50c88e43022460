package event

import "go.uber.org/zap"

// LogSink writes every event to a zap logger. Level-ups and learned abilities
// log at Info; everything else at Debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink writing to logger.
//
// Precondition: logger must be non-nil.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	fields := []zap.Field{
		zap.String("event_id", e.ID.String()),
		zap.String("character", e.CharacterUID.String()),
	}
	switch e.Kind {
	case KindCastCommitted:
		fields = append(fields,
			zap.String("ability", string(e.Ability)),
			zap.Uint32("cost", e.Cost),
			zap.Float64("cooldown_seconds", e.Cooldown),
		)
	case KindCastRejected:
		fields = append(fields,
			zap.String("ability", string(e.Ability)),
			zap.String("reason", e.Reason),
		)
	case KindCooldownExpired:
		fields = append(fields, zap.String("instance", e.Instance.String()))
	case KindManaRegenerated:
		fields = append(fields, zap.Int64("amount", e.Amount))
	case KindLevelUp:
		fields = append(fields, zap.Uint32("from", e.FromLevel), zap.Uint32("to", e.ToLevel))
		s.logger.Info(string(e.Kind), fields...)
		return
	case KindAbilityLearned:
		fields = append(fields, zap.String("ability", string(e.Ability)))
		s.logger.Info(string(e.Kind), fields...)
		return
	}
	s.logger.Debug(string(e.Kind), fields...)
}
