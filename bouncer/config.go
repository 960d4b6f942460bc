package bouncer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pior/replyroute"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoNetworks        = errors.New("replyroute: no networks configured")
	ErrNoServers         = errors.New("replyroute: no servers configured")
	ErrUnknownNetwork    = errors.New("replyroute: unknown network")
	ErrDuplicateNetwork  = errors.New("replyroute: duplicate network")
	ErrAmbiguousNetwork  = errors.New("replyroute: network required when several are configured")
	ErrInvalidConfigFile = errors.New("replyroute: invalid configuration file")
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultListen             = "127.0.0.1:6667"
	DefaultDatabase           = "replyroute.db"
	DefaultDialTimeout        = 10 * time.Second
	DefaultReconnectDelay     = 10 * time.Second
	DefaultPingInterval       = 90 * time.Second
	DefaultRegisterTimeout    = 30 * time.Second
	DefaultClientWriteTimeout = 2 * time.Second
	DefaultBreakerFailures    = 5
	DefaultBreakerTimeout     = 60 * time.Second
)

// Config is the bouncer configuration file.
type Config struct {
	// Listen is the address downstream clients connect to.
	Listen string `yaml:"listen"`

	// Password, when set, must be sent by clients with PASS.
	Password string `yaml:"password"`

	// MetricsListen is the address of the Prometheus endpoint.
	// Empty disables it.
	MetricsListen string `yaml:"metrics_listen"`

	// Database is the SQLite file holding module preferences.
	Database string `yaml:"database"`

	// ModuleNick is the nick clients message to reach the control commands.
	ModuleNick string `yaml:"module_nick"`

	// RegisterTimeout bounds downstream client registration.
	RegisterTimeout time.Duration `yaml:"register_timeout"`

	// ClientWriteTimeout bounds one write to a downstream client. Writes
	// happen on the network loop, so a stalled client holds up routing for
	// at most this long before it is disconnected.
	ClientWriteTimeout time.Duration `yaml:"client_write_timeout"`

	Networks []NetworkConfig `yaml:"networks"`
}

// NetworkConfig describes one upstream IRC network.
type NetworkConfig struct {
	Name string `yaml:"name"`

	// Servers are host:port addresses, tried in the order picked by the
	// server selector.
	Servers []string `yaml:"servers"`

	// Password is sent to the server with PASS before registration.
	Password string `yaml:"password"`

	Nick     string `yaml:"nick"`
	User     string `yaml:"user"`
	RealName string `yaml:"realname"`

	// RouteTimeout is how long a routed request may wait for its last reply.
	RouteTimeout time.Duration `yaml:"route_timeout"`

	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// PingInterval is how often the upstream connection is checked with PING.
	PingInterval time.Duration `yaml:"ping_interval"`

	// BreakerFailures consecutive failed dials open the circuit breaker for
	// BreakerTimeout.
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// LoadConfig reads, defaults and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes, defaults and validates a YAML configuration.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.ModuleNick == "" {
		c.ModuleNick = replyroute.DefaultModuleNick
	}
	if c.RegisterTimeout <= 0 {
		c.RegisterTimeout = DefaultRegisterTimeout
	}
	if c.ClientWriteTimeout <= 0 {
		c.ClientWriteTimeout = DefaultClientWriteTimeout
	}

	for i := range c.Networks {
		c.Networks[i].setDefaults()
	}
}

func (n *NetworkConfig) setDefaults() {
	if n.User == "" {
		n.User = n.Nick
	}
	if n.RealName == "" {
		n.RealName = n.Nick
	}
	if n.RouteTimeout <= 0 {
		n.RouteTimeout = replyroute.DefaultTimeout
	}
	if n.DialTimeout <= 0 {
		n.DialTimeout = DefaultDialTimeout
	}
	if n.ReconnectDelay <= 0 {
		n.ReconnectDelay = DefaultReconnectDelay
	}
	if n.PingInterval <= 0 {
		n.PingInterval = DefaultPingInterval
	}
	if n.BreakerFailures == 0 {
		n.BreakerFailures = DefaultBreakerFailures
	}
	if n.BreakerTimeout <= 0 {
		n.BreakerTimeout = DefaultBreakerTimeout
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return ErrNoNetworks
	}

	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if n.Name == "" || strings.ContainsAny(n.Name, " /") {
			return fmt.Errorf("replyroute: invalid network name %q", n.Name)
		}
		key := strings.ToLower(n.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateNetwork, n.Name)
		}
		seen[key] = true

		if len(n.Servers) == 0 {
			return fmt.Errorf("%w: %s", ErrNoServers, n.Name)
		}
		if n.Nick == "" {
			return fmt.Errorf("replyroute: network %s: nick is required", n.Name)
		}
	}

	if !strings.HasPrefix(c.ModuleNick, "*") {
		return fmt.Errorf("replyroute: module_nick %q must start with '*'", c.ModuleNick)
	}
	return nil
}

// Network returns the network a client asked for. An empty name selects
// the only network when exactly one is configured.
func (c *Config) Network(name string) (*NetworkConfig, error) {
	if name == "" {
		if len(c.Networks) == 1 {
			return &c.Networks[0], nil
		}
		return nil, ErrAmbiguousNetwork
	}

	for i := range c.Networks {
		if strings.EqualFold(c.Networks[i].Name, name) {
			return &c.Networks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
}
