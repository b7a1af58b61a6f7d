// Package config defines the nested configuration struct loaded by
// configulator at boot and threaded explicitly through every subsystem.
// There is no package-level ambient config getter; callers receive a
// *Config and pass it on.
package config

import "time"

// Config is the root configuration for a flochub node.
type Config struct {
	LogLevel LogLevel `yaml:"logLevel" default:"info"`
	Debug    bool     `yaml:"debug" default:"false"`

	Identity Identity `yaml:"identity"`
	Queues   Queues   `yaml:"queues"`
	Bloom    Bloom    `yaml:"bloom"`
	Modem    Modem    `yaml:"modem"`
	NeST     NeST     `yaml:"nest"`
	Redis    Redis    `yaml:"redis"`
	Database Database `yaml:"database"`
	Metrics  Metrics  `yaml:"metrics"`
	Monitor  Monitor  `yaml:"monitor"`
	Tracing  Tracing  `yaml:"tracing"`
}

// Identity holds the node's network and device addresses.
type Identity struct {
	NetworkID uint16 `yaml:"networkID" default:"1"`
	DeviceID  uint16 `yaml:"deviceID"`
}

// Queues holds the outbound FIFO capacity and the command retry bound.
// Validate checks them; floc.NewCore does not read them and uses its fixed
// MaxSendBuffer and MaxTransmissions constants instead.
type Queues struct {
	Capacity         int `yaml:"capacity" default:"5"`
	MaxTransmissions int `yaml:"maxTransmissions" default:"5"`
}

// Bloom holds the duplicate-suppression filter reset cadence. Validate
// checks it; floc.NewCore does not read it and uses its fixed BloomReset
// constant instead.
type Bloom struct {
	ResetInterval time.Duration `yaml:"resetInterval" default:"5m"`
}

// Modem configures the transport used to reach the acoustic modem.
type Modem struct {
	Transport  string `yaml:"transport" default:"simulated"` // "serial" | "simulated"
	SerialPort string `yaml:"serialPort"`
	BaudRate   int    `yaml:"baudRate" default:"9600"`
	// SimTopic is the pubsub topic simulated nodes use as their shared
	// acoustic channel. Ignored when Transport is "serial".
	SimTopic string `yaml:"simTopic" default:"floc-mesh"`
}

// NeST configures the supervisory host serial (or simulated) ingress.
type NeST struct {
	Transport  string `yaml:"transport" default:"simulated"` // "serial" | "simulated"
	SerialPort string `yaml:"serialPort"`
	BaudRate   int    `yaml:"baudRate" default:"9600"`
	SimTopic   string `yaml:"simTopic" default:"floc-nest-in"`
}

// Redis configures the optional Redis backing for kv/pubsub.
type Redis struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
}

// Database configures the audit log store.
type Database struct {
	Driver DatabaseDriver `yaml:"driver" default:"sqlite"`
	DSN    string         `yaml:"dsn" default:"flochub.db"`
}

// Metrics configures the Prometheus metrics server.
type Metrics struct {
	Enabled      bool   `yaml:"enabled" default:"true"`
	Bind         string `yaml:"bind" default:"127.0.0.1"`
	Port         int    `yaml:"port" default:"9090"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Monitor configures the operator console HTTP/WS server.
type Monitor struct {
	Enabled        bool     `yaml:"enabled" default:"true"`
	Bind           string   `yaml:"bind" default:"127.0.0.1"`
	Port           int      `yaml:"port" default:"8420"`
	OpenBrowser    bool     `yaml:"openBrowser" default:"false"`
	TrustedProxies []string `yaml:"trustedProxies"`
	CORSHosts      []string `yaml:"corsHosts"`
}

// Tracing configures optional OTLP trace export.
type Tracing struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}
