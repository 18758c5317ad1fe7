package log

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LogTestSuite struct {
	suite.Suite
}

func (s *LogTestSuite) TestParseLevel() {
	testCases := []struct {
		in       string
		expected zapcore.Level
	}{
		{in: "debug", expected: zapcore.DebugLevel},
		{in: " WARN ", expected: zapcore.WarnLevel},
		{in: "error", expected: zapcore.ErrorLevel},
		{in: "info", expected: zapcore.InfoLevel},
		{in: "", expected: zapcore.InfoLevel},
		{in: "verbose", expected: zapcore.InfoLevel},
	}
	for _, tc := range testCases {
		s.Run(tc.in, func() {
			s.Equal(tc.expected, parseLevel(tc.in))
		})
	}
}

func (s *LogTestSuite) TestSetLevel() {
	prev := Logger
	defer func() { Logger = prev }()

	SetLevel("error")
	s.False(Logger.Desugar().Core().Enabled(zapcore.WarnLevel))
	s.True(Logger.Desugar().Core().Enabled(zapcore.ErrorLevel))

	SetLevel("debug")
	s.True(Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestLogSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}
