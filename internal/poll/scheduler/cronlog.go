package scheduler

import logx "jmxpoller/pkg/logx"

// cronLogAdapter satisfies cron.Logger, routing the library's own
// diagnostics (panics recovered by cron.Recover, parse-time warnings)
// through the agent's structured logger.
type cronLogAdapter struct{ log logx.Logger }

func (a cronLogAdapter) Info(msg string, kv ...any) {
	a.log.Debug(msg, fieldsFromKV(kv)...)
}

func (a cronLogAdapter) Error(err error, msg string, kv ...any) {
	fields := append([]logx.Field{logx.Err(err)}, fieldsFromKV(kv)...)
	a.log.Error(msg, fields...)
}

func fieldsFromKV(kv []any) []logx.Field {
	fields := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, logx.Any(key, kv[i+1]))
	}
	return fields
}
