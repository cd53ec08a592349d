package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
)

func TestRollbarLogger_Fields(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(obsCore).Sugar(), &core.Config{Env: "TEST"})
	logger.Enable(false)

	logger.Info("plan generated",
		map[string]interface{}{"warnings": 2, "priority_mode": true},
		core.Person{ID: "u1"},
	)
	logger.Error("saving plan", errors.New("connection reset"))

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "plan generated", entries[0].Message)
		assert.Equal(t, map[string]interface{}{"warnings": int64(2), "priority_mode": true, "user_id": "u1"}, entries[0].ContextMap())
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "connection reset", entries[1].ContextMap()["error"])
	}
}

func TestRollbarLogger_Prepare(t *testing.T) {
	logger := RollbarLogger{}
	err := errors.New("boom")
	got := logger.prepare("msg", []interface{}{core.Person{ID: "u1"}, err, core.Person{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, got)
}
