package configuration

import (
	"time"

	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

type OracleType string

const (
	SubprocessOracle OracleType = "subprocess"
	InProcessOracle  OracleType = "inProcess"
)

type StoreType string

const (
	FileStore  StoreType = "file"
	RedisStore StoreType = "redis"
)

type SubtaskKind string

const (
	ExchangeSubtask  SubtaskKind = "exchange"
	HandshakeSubtask SubtaskKind = "handshake"
)

type TimingScanConfiguration struct {
	// Number of targets evaluated concurrently.
	Threads int
	// Planned measurements per active variant in every round.
	MeasurementsPerRound int
	// Planned measurements per variant after which a subtask terminates.
	TotalMeasurements int
	// Port the prometheus endpoint is served on. 0 disables it.
	MetricsPort uint16
	// Root directory for comparison files and file-backed reports. May start with ~.
	OutputDirectory string
	// How often overall progress is logged.
	ProgressInterval time.Duration
	Network          NetworkConfiguration
	Oracle           OracleConfiguration
	TargetManagement TargetManagementConfiguration
	ReportStore      ReportStoreConfiguration
}

type NetworkConfiguration struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

type OracleConfiguration struct {
	Type OracleType
	// Interpreter used to run the script, e.g. Rscript.
	Executable     string
	ScriptLocation string
	// Only used by the in-process oracle.
	SignificanceLevel float64
	MinSamples        int
}

type TargetManagementConfiguration struct {
	Policy domain.TargetPolicy
	// How long to wait for a (re)started target to accept connections.
	StartupTimeout time.Duration
	// Interval between readiness checks while waiting.
	PollInterval time.Duration
	Kubernetes   KubernetesConfiguration
}

type KubernetesConfiguration struct {
	// Path to a kubeconfig file. Empty means in-cluster configuration.
	Kubeconfig string
}

type ReportStoreConfiguration struct {
	Type  StoreType
	Redis RedisConfiguration
}

type RedisConfiguration struct {
	Addr     string
	Password string
	DB       int
}

// Plan lists what to scan. It is kept separate from TimingScanConfiguration so the same engine
// settings can be reused for different sets of targets.
type Plan struct {
	Targets  []TargetSpec  `yaml:"targets"`
	Subtasks []SubtaskSpec `yaml:"subtasks"`
}

type TargetSpec struct {
	Name    string            `yaml:"name"`
	Address string            `yaml:"address"`
	Tags    map[string]string `yaml:"tags"`
	// Used by the process policy.
	Process *ProcessSpec `yaml:"process"`
	// Used by the kubernetes policy.
	Kubernetes *KubernetesSpec `yaml:"kubernetes"`
}

type ProcessSpec struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env"`
}

type KubernetesSpec struct {
	Namespace     string `yaml:"namespace"`
	LabelSelector string `yaml:"labelSelector"`
	Port          int    `yaml:"port"`
}

type SubtaskSpec struct {
	Name     string                `yaml:"name"`
	Kind     SubtaskKind           `yaml:"kind"`
	Mode     domain.ComparisonMode `yaml:"mode"`
	Baseline string                `yaml:"baseline"`
	// Tags the target must carry for the subtask to apply.
	Requires map[string]string `yaml:"requires"`
	// tcp or tls for exchange subtasks. Defaults to the target's protocol tag.
	Transport string        `yaml:"transport"`
	Variants  []VariantSpec `yaml:"variants"`
}

type VariantSpec struct {
	Id string `yaml:"id"`
	// Hex encoded bytes sent by exchange subtasks.
	Payload string `yaml:"payload"`
	// Hex encoded prefix the response must start with to count as a usable sample.
	Marker string `yaml:"marker"`

	// Handshake parameters.
	MinVersion   string   `yaml:"minVersion"`
	MaxVersion   string   `yaml:"maxVersion"`
	CipherSuites []string `yaml:"cipherSuites"`
	ServerName   string   `yaml:"serverName"`
	// complete or alert: which handshake outcome yields a sample.
	Expect string `yaml:"expect"`
}

func (p *Plan) TaskCount() int {
	return len(p.Targets) * len(p.Subtasks)
}
