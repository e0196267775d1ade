// Package telemetry sends anonymous command usage when the user opted in.
package telemetry

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// PostHogAPIKey is set at build time for production
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// OptOutEnvVar disables telemetry regardless of settings when set to any value.
const OptOutEnvVar = "PORTABASE_TELEMETRY_OPTOUT"

const (
	eventName = "cli_command_executed"
	appID     = "portabase-cli"
)

// Client records command executions.
type Client interface {
	TrackCommand(cmd *cobra.Command)
	Close()
}

// NoOpClient is used whenever telemetry is disabled.
type NoOpClient struct{}

func (NoOpClient) TrackCommand(*cobra.Command) {}
func (NoOpClient) Close()                      {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...interface{})   {}
func (silentLogger) Debugf(string, ...interface{}) {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}

// PostHogClient enqueues events to PostHog.
type PostHogClient struct {
	client    posthog.Client
	machineID string
	mu        sync.RWMutex
}

// NewClient returns a PostHog client only when the opt-out variable is
// unset and enabled points at true; nil means the user never opted in.
//
//nolint:ireturn // returns NoOpClient or PostHogClient based on settings
func NewClient(version string, enabled *bool) Client {
	if os.Getenv(OptOutEnvVar) != "" {
		return NoOpClient{}
	}
	if enabled == nil || !*enabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return NoOpClient{}
	}

	// CLI exit must not wait on telemetry.
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 100 * time.Millisecond}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id}
}

// Trackable reports whether cmd should produce an event. Hidden, help and
// completion commands never do.
func Trackable(cmd *cobra.Command) bool {
	if cmd == nil || cmd.Hidden {
		return false
	}
	switch cmd.Name() {
	case "help", "completion", "__complete":
		return false
	}
	return true
}

// Properties are the event properties for cmd. Flag names are included,
// never their values.
func Properties(cmd *cobra.Command) posthog.Properties {
	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})
	sort.Strings(flags)

	props := posthog.NewProperties().Set("command", cmd.CommandPath())
	if len(flags) > 0 {
		props.Set("flags", strings.Join(flags, ","))
	}
	return props
}

func (p *PostHogClient) TrackCommand(cmd *cobra.Command) {
	if !Trackable(cmd) {
		return
	}

	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()

	if c == nil {
		return
	}

	//nolint:errcheck // best effort
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      eventName,
		Properties: Properties(cmd),
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()

	if c != nil {
		_ = c.Close()
	}
}
