package projectlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimestampFormat = time.RFC3339
	FieldKeyMsg            = "msg"
	FieldKeyLevel          = "level"
	FieldKeyTime           = "time"
	FieldKeyFunc           = "func"
	FieldKeyFile           = "file"
	FieldModule            = "module"
	FieldKeyUserID         = "user_id"
	FieldKeyRequestID      = "request_id"
)

const LogPrefixName = "evolveai"

// 固定字段顺序的日志结构，额外字段收进 Extra
type LogFormat struct {
	Level     interface{}            `json:"level,omitempty"`
	Module    interface{}            `json:"module,omitempty"`
	Time      interface{}            `json:"time,omitempty"`
	File      interface{}            `json:"file,omitempty"`
	Function  interface{}            `json:"function,omitempty"`
	Msg       interface{}            `json:"msg,omitempty"`
	UserID    interface{}            `json:"user_id,omitempty"`
	RequestID interface{}            `json:"request_id,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

type JSONFormatter struct {
	// TimestampFormat sets the format used for marshaling timestamps.
	TimestampFormat string

	// DisableTimestamp allows disabling automatic timestamps in output
	DisableTimestamp bool
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	logFormat := &LogFormat{
		Msg:    entry.Message,
		Level:  entry.Level.String(),
		Module: LogPrefixName,
	}

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = defaultTimestampFormat
	}
	if !f.DisableTimestamp {
		logFormat.Time = entry.Time.Format(timestampFormat)
	}
	if entry.HasCaller() {
		logFormat.Function = entry.Caller.Function
		logFormat.File = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	for k, v := range entry.Data {
		// errors are ignored by `encoding/json`
		// https://github.com/sirupsen/logrus/issues/137
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		switch k {
		case FieldKeyUserID:
			logFormat.UserID = v
		case FieldKeyRequestID:
			logFormat.RequestID = v
		default:
			if logFormat.Extra == nil {
				logFormat.Extra = make(map[string]interface{}, len(entry.Data))
			}
			logFormat.Extra[k] = v
		}
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	encoder := json.NewEncoder(b)
	if err := encoder.Encode(logFormat); err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON, %v", err)
	}

	return b.Bytes(), nil
}
