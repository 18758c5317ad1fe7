package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"

	"github.com/lc/ipsniper/internal/config"
	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/pkg/api"
)

type CLITestSuite struct {
	suite.Suite
	noColor bool
}

func (s *CLITestSuite) SetupSuite() {
	s.noColor = color.NoColor
	color.NoColor = true
}

func (s *CLITestSuite) TearDownSuite() {
	color.NoColor = s.noColor
}

func (s *CLITestSuite) parse(args ...string) (*config.Config, error) {
	var f runFlags
	fl := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bindRunFlags(fl, &f)
	s.Require().NoError(fl.Parse(args))

	cfg := config.Default()
	return cfg, f.apply(fl, cfg, fl.Args())
}

func (s *CLITestSuite) TestApplyFlags() {
	testCases := []struct {
		name   string
		args   []string
		check  func(*config.Config)
		errMsg string
	}{
		{
			name: "no flags keeps config",
			args: nil,
			check: func(c *config.Config) {
				s.Equal(config.Default(), c)
			},
		},
		{
			name: "positional input and output",
			args: []string{"hosts.txt", "hits.txt"},
			check: func(c *config.Config) {
				s.Equal("hosts.txt", c.Input)
				s.Equal("hits.txt", c.Output.Path)
			},
		},
		{
			name: "overrides",
			args: []string{
				"--servers", "1.1.1.1,8.8.8.8:5353",
				"--targets", "10.0.0.1,2001:db8::1",
				"--concurrency", "7",
				"--threshold", "3",
				"--retries", "0",
				"--retry-delay", "1s",
				"--timeout", "2s",
				"--strategy", "pool",
				"--mode", "append",
				"--on-flush-error", "abort",
				"--status-socket", "/tmp/s.sock",
			},
			check: func(c *config.Config) {
				s.Equal([]string{"1.1.1.1", "8.8.8.8:5353"}, c.Resolvers.Servers)
				s.Equal([]string{"10.0.0.1", "2001:db8::1"}, c.Targets)
				s.Equal(7, c.Scheduler.Concurrency)
				s.Equal(3, c.Flush.Threshold)
				s.Equal(0, c.Retry.Max)
				s.Equal(time.Second, c.Retry.Delay)
				s.Equal(2*time.Second, c.Resolvers.Timeout)
				s.Equal("pool", c.Scheduler.Strategy)
				s.Equal("append", c.Output.Mode)
				s.Equal("abort", c.Flush.OnError)
				s.Equal("/tmp/s.sock", c.Status.Socket)
			},
		},
		{
			name:   "invalid override",
			args:   []string{"--concurrency", "0"},
			errMsg: "concurrency must be at least 1",
		},
		{
			name:   "invalid target",
			args:   []string{"--targets", "not-an-ip"},
			errMsg: "invalid target IP",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg, err := s.parse(tc.args...)
			if tc.errMsg != "" {
				s.Require().Error(err)
				s.Contains(err.Error(), tc.errMsg)
				return
			}
			s.Require().NoError(err)
			tc.check(cfg)
		})
	}
}

func (s *CLITestSuite) TestRenderSummary() {
	var buf bytes.Buffer
	renderSummary(&buf, engine.Stats{
		Total:        3,
		Processed:    3,
		Matched:      1,
		Elapsed:      1500 * time.Millisecond,
		OverallRate:  2,
		TimeoutTotal: 3,
		Timeouts: []engine.ResolverTimeouts{
			{Server: "101.101.101.101:53", Count: 3},
			{Server: "168.95.1.1:53", Count: 0},
		},
	})

	out := buf.String()
	s.Contains(out, "Found 1 matching domains out of 3 in 1.5s (2.00/sec)")
	s.Contains(out, "101.101.101.101:53")
	s.Contains(out, "168.95.1.1:53")
	s.Contains(out, "3 queries timed out across 2 resolvers")
	s.NotContains(out, "stopped early")
	s.NotContains(out, "could not be written")
}

func (s *CLITestSuite) TestRenderStatusMinimal() {
	var buf bytes.Buffer
	s.NotPanics(func() {
		renderStatus(&buf, api.StatusResponse{Stats: engine.Stats{RunID: "x"}})
	})
	s.Contains(buf.String(), "x")
}

func (s *CLITestSuite) TestRenderSummaryInterrupted() {
	var buf bytes.Buffer
	renderSummary(&buf, engine.Stats{Total: 10, Processed: 4, Matched: 2, Pending: 2})

	out := buf.String()
	s.Contains(out, "Sweep stopped early: 4 of 10 domains processed")
	s.Contains(out, "2 matches could not be written to the output")
}

func (s *CLITestSuite) TestRenderStatus() {
	var buf bytes.Buffer
	renderStatus(&buf, api.StatusResponse{
		Stats: engine.Stats{
			RunID:     "3f1c",
			Total:     100,
			Processed: 40,
			Matched:   5,
			Outcomes:  map[string]uint64{"matched": 5, "no_match": 35},
			Timeouts:  []engine.ResolverTimeouts{{Server: "8.8.8.8:53", Count: 1}},
		},
		Version: "v0.1.0",
		Commit:  "abc123",
	})

	out := buf.String()
	s.Contains(out, "3f1c")
	s.Contains(out, "running")
	s.Contains(out, "40 / 100")
	s.Contains(out, "no_match")
	s.Contains(out, "8.8.8.8:53")
	s.Contains(out, "v0.1.0 (abc123)")
	s.Contains(out, "Timeouts")
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}
