// Package archive is the public facade over internal/control: it loads a
// Config the way the teacher loads its server Config structs (TOML file,
// package-level defaultConfig, SetDefault/validate) and turns one into a
// connected AeronArchive.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"archiveclient/pkg/discovery"
	"archiveclient/pkg/transport"
)

// Duration round-trips through TOML as "5s" instead of raw nanoseconds,
// matching the teacher's util.Duration idiom.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.Duration.String()), nil
}

// Config is every knob the control-session engine exposes to an embedder,
// loaded from a TOML file (spec.md §6's configuration defaults).
type Config struct {
	RequestChannel   string `toml:"request_channel"`
	RequestStreamID  int32  `toml:"request_stream_id"`
	ResponseChannel  string `toml:"response_channel"`
	ResponseStreamID int32  `toml:"response_stream_id"`

	RecordingEventsChannel  string `toml:"recording_events_channel"`
	RecordingEventsStreamID int32  `toml:"recording_events_stream_id"`

	MessageTimeout Duration `toml:"message_timeout"`
	ConnectTimeout Duration `toml:"connect_timeout"`

	ControlTermBufferLength int32 `toml:"control_term_buffer_length"`
	ControlMTULength        int32 `toml:"control_mtu_length"`
	ControlTermBufferSparse bool  `toml:"control_term_buffer_sparse"`

	ScratchBufferSize    int `toml:"scratch_buffer_size"`
	ResponseFragmentLimit int `toml:"response_fragment_limit"`
	OfferRetryCount      int `toml:"offer_retry_count"`

	SemanticVersionMajor uint8 `toml:"semantic_version_major"`
	SemanticVersionMinor uint8 `toml:"semantic_version_minor"`
	SemanticVersionPatch uint8 `toml:"semantic_version_patch"`

	LiveAddThreshold      float64 `toml:"live_add_threshold"`
	ReplayRemoveThreshold float64 `toml:"replay_remove_threshold"`

	// Discovery opts into resolving RequestChannel/ResponseChannel's
	// endpoints from etcd (pkg/discovery) instead of using them literally.
	Discovery *DiscoveryConfig `toml:"discovery"`
}

// DiscoveryConfig enables pkg/discovery resolution of the archive's
// control-request/control-response host:port from an etcd key prefix.
type DiscoveryConfig struct {
	Enabled   bool     `toml:"enabled"`
	Endpoints []string `toml:"endpoints"`
	KeyPrefix string   `toml:"key_prefix"`
	Timeout   Duration `toml:"timeout"`
}

var defaultConfig = Config{
	RequestChannel:   "aeron:udp?endpoint=localhost:8010",
	RequestStreamID:  10,
	ResponseChannel:  "aeron:udp?endpoint=localhost:8020",
	ResponseStreamID: 20,

	RecordingEventsChannel:  "aeron:udp?control-mode=dynamic|control=localhost:8030",
	RecordingEventsStreamID: 30,

	MessageTimeout: Duration{5 * time.Second},
	ConnectTimeout: Duration{5 * time.Second},

	ControlTermBufferLength: 64 * 1024,
	ControlMTULength:        1408,
	ControlTermBufferSparse: true,

	ScratchBufferSize:    256,
	ResponseFragmentLimit: 10,
	OfferRetryCount:      3,

	SemanticVersionMajor: 0,
	SemanticVersionMinor: 2,
	SemanticVersionPatch: 1,

	LiveAddThreshold:      1.0 / 16.0,
	ReplayRemoveThreshold: 1.0 / 4.0,
}

// SetDefault resets c to the package defaults, the way the teacher's
// Config.SetDefault resets to its own defaultConfig value.
func (c *Config) SetDefault() {
	*c = defaultConfig
}

// LoadConfig reads path as TOML into a Config seeded with defaults, then
// validates it.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	c.SetDefault()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.RequestChannel == "" {
		return fmt.Errorf("archive: Config.RequestChannel not specified")
	}
	if c.ResponseChannel == "" {
		return fmt.Errorf("archive: Config.ResponseChannel not specified")
	}
	if c.MessageTimeout.Duration <= 0 {
		return fmt.Errorf("archive: Config.MessageTimeout must be positive")
	}
	if c.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("archive: Config.ConnectTimeout must be positive")
	}
	if c.ScratchBufferSize <= 0 {
		return fmt.Errorf("archive: Config.ScratchBufferSize must be positive")
	}
	if c.ResponseFragmentLimit <= 0 {
		return fmt.Errorf("archive: Config.ResponseFragmentLimit must be positive")
	}
	if c.OfferRetryCount <= 0 {
		return fmt.Errorf("archive: Config.OfferRetryCount must be positive")
	}
	if c.Discovery != nil && c.Discovery.Enabled && len(c.Discovery.Endpoints) == 0 {
		return fmt.Errorf("archive: Config.Discovery.Endpoints not specified")
	}
	return nil
}

// SemanticVersion composes the configured (major,minor,patch) triple the way
// aeronproto.SemanticVersion does.
func (c *Config) SemanticVersion() int32 {
	return int32(c.SemanticVersionMajor)<<16 | int32(c.SemanticVersionMinor)<<8 | int32(c.SemanticVersionPatch)
}

// ResolveDiscovery rewrites RequestChannel/ResponseChannel's endpoint
// parameter from etcd when Discovery is enabled. It is a no-op otherwise.
func (c *Config) ResolveDiscovery(ctx context.Context) error {
	if c.Discovery == nil || !c.Discovery.Enabled {
		return nil
	}
	resolver, err := discovery.NewResolver(discovery.Config{
		Endpoints:      c.Discovery.Endpoints,
		RequestTimeout: c.Discovery.Timeout.Duration,
		KeyPrefix:      c.Discovery.KeyPrefix,
	})
	if err != nil {
		return err
	}
	defer resolver.Close()

	requestEndpoint, responseEndpoint, err := resolver.ResolveEndpoints(ctx)
	if err != nil {
		return err
	}
	c.RequestChannel = transport.ReplaceEndpoint(c.RequestChannel, requestEndpoint)
	c.ResponseChannel = transport.ReplaceEndpoint(c.ResponseChannel, responseEndpoint)
	return nil
}
