package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithUserID(context.Background(), "u1")

	tl.Info(ctx, "tracking initialized", zap.Float64("calories", 500))
	tl.Warn(ctx, "publish failed")

	tl.AssertLogged(t, zapcore.InfoLevel, "tracking initialized")
	tl.AssertLogged(t, zapcore.WarnLevel, "publish")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "tracking")
	tl.AssertField(t, "tracking initialized", "user.id", "u1")
	tl.AssertField(t, "tracking initialized", "calories", 500.0)
	assert.Len(t, tl.All(), 2)
	assert.Equal(t, 1, tl.FilterMessage("publish failed").Len())

	tl.Reset()
	assert.Empty(t, tl.All())
}
