package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/strangelove-ventures/fomc-oracle/client"
)

type Transport string

const (
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"

	ExtractorKeyword = "keyword"
	ExtractorOllama  = "ollama"

	DefaultKeyFile   = "public_keys.json"
	DefaultShareFile = "share.json"
	DefaultAuditDB   = "audit.db"
	DefaultDebugAddr = "localhost:8543"

	DefaultCallTimeout      = 30 * time.Second
	DefaultExtractorTimeout = 2 * time.Minute
)

// Config maps to the on-disk yaml format
type Config struct {
	KeyFile             string               `yaml:"keyFile,omitempty"`
	Participant         *ParticipantConfig   `yaml:"participant,omitempty"`
	ThresholdModeConfig *ThresholdModeConfig `yaml:"thresholdMode,omitempty"`
	Extractor           ExtractorConfig      `yaml:"extractor"`
	Ledger              LedgerConfig         `yaml:"ledger"`
	AuditDB             string               `yaml:"auditDB,omitempty"`
	DebugAddr           string               `yaml:"debugAddr"`
}

func (c *Config) MustMarshalYaml() []byte {
	out, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	return out
}

// ValidateParticipantConfig checks the settings a signing participant needs.
func (c *Config) ValidateParticipantConfig() error {
	if c.Participant == nil {
		return fmt.Errorf("participant config can't be empty")
	}
	if err := c.Participant.Validate(); err != nil {
		return err
	}
	return c.Extractor.Validate()
}

// ValidateThresholdModeConfig checks the settings the coordinator needs.
func (c *Config) ValidateThresholdModeConfig() error {
	if c.ThresholdModeConfig == nil {
		return fmt.Errorf("threshold mode config can't be empty")
		// the rest of the checks depend on non-nil c.ThresholdModeConfig
	}

	numParticipants := len(c.ThresholdModeConfig.Participants)
	threshold := c.ThresholdModeConfig.Threshold

	if threshold < 1 {
		return fmt.Errorf("threshold (%d) must be at least 1", threshold)
	}

	if numParticipants < threshold {
		return fmt.Errorf("number of participants (%d) must be greater or equal to threshold (%d)",
			numParticipants, threshold)
	}

	if _, err := c.ThresholdModeConfig.CallTimeout(); err != nil {
		return err
	}

	if err := c.ThresholdModeConfig.Participants.Validate(); err != nil {
		return err
	}

	return c.Ledger.Validate()
}

type RuntimeConfig struct {
	HomeDir    string
	ConfigFile string
	PidFile    string
	Config     Config
}

func (c RuntimeConfig) resolve(file, fallback string) string {
	if file == "" {
		file = fallback
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.HomeDir, file)
}

func (c RuntimeConfig) KeyFilePath() string {
	return c.resolve(c.Config.KeyFile, DefaultKeyFile)
}

func (c RuntimeConfig) ShareFilePath() string {
	var file string
	if c.Config.Participant != nil {
		file = c.Config.Participant.ShareFile
	}
	return c.resolve(file, DefaultShareFile)
}

func (c RuntimeConfig) AuditDBPath() string {
	return c.resolve(c.Config.AuditDB, DefaultAuditDB)
}

func (c RuntimeConfig) WriteConfigFile() error {
	return os.WriteFile(c.ConfigFile, c.Config.MustMarshalYaml(), 0600)
}

func fileExists(file string) error {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file doesn't exist at path (%s): %w", file, err)
		}
		return fmt.Errorf("unexpected error checking file existence (%s): %w", file, err)
	}
	if stat.IsDir() {
		return fmt.Errorf("path is not a file (%s)", file)
	}

	return nil
}

func (c RuntimeConfig) KeyFileExists() (string, error) {
	keyFile := c.KeyFilePath()
	return keyFile, fileExists(keyFile)
}

func (c RuntimeConfig) ShareFileExists() (string, error) {
	shareFile := c.ShareFilePath()
	return shareFile, fileExists(shareFile)
}

// ParticipantConfig is the on disk config of a signing participant.
type ParticipantConfig struct {
	ID         int    `yaml:"id"`
	ListenAddr string `yaml:"listenAddr"`
	GRPCAddr   string `yaml:"grpcAddr,omitempty"`
	ShareFile  string `yaml:"shareFile,omitempty"`
}

func (p *ParticipantConfig) Validate() error {
	if p.ID < 1 {
		return fmt.Errorf("participant id (%d) must be at least 1", p.ID)
	}
	if _, _, err := net.SplitHostPort(p.ListenAddr); err != nil {
		return fmt.Errorf("invalid listenAddr: %w", err)
	}
	if p.GRPCAddr != "" {
		if _, _, err := net.SplitHostPort(p.GRPCAddr); err != nil {
			return fmt.Errorf("invalid grpcAddr: %w", err)
		}
	}
	return nil
}

// ThresholdModeConfig is the on disk config of the coordinator.
type ThresholdModeConfig struct {
	Threshold    int                `yaml:"threshold"`
	Participants ParticipantsConfig `yaml:"participants"`
	Timeout      string             `yaml:"timeout,omitempty"`
	HealthCheck  bool               `yaml:"healthCheck"`
}

func (cfg *ThresholdModeConfig) CallTimeout() (time.Duration, error) {
	if cfg.Timeout == "" {
		return DefaultCallTimeout, nil
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout (%s) must be positive", cfg.Timeout)
	}
	return d, nil
}

// RemoteParticipant is the on disk format of a participant as seen by the
// coordinator.
type RemoteParticipant struct {
	ID        int       `yaml:"id"`
	Address   string    `yaml:"address"`
	Transport Transport `yaml:"transport,omitempty"`
}

type ParticipantsConfig []RemoteParticipant

func (participants ParticipantsConfig) Validate() error {
	if dupl := duplicateParticipants(participants); len(dupl) != 0 {
		return fmt.Errorf("found duplicate participant id(s): %v", dupl)
	}

	total := len(participants)

	for _, p := range participants {
		if p.ID < 1 || p.ID > total {
			return fmt.Errorf("participant id %d is out of range, must be between 1 and %d, inclusive",
				p.ID, total)
		}

		if _, err := client.SanitizeAddress(p.Address); err != nil {
			return fmt.Errorf("failed to parse participant %d address: %w", p.ID, err)
		}

		switch p.Transport {
		case "", TransportHTTP, TransportGRPC:
		default:
			return fmt.Errorf("participant %d has unknown transport %q", p.ID, p.Transport)
		}
	}

	return nil
}

func duplicateParticipants(participants []RemoteParticipant) (duplicates map[int][]string) {
	idAddrs := make(map[int][]string)
	for _, p := range participants {
		idAddrs[p.ID] = append(idAddrs[p.ID], p.Address)
	}

	for id, addrs := range idAddrs {
		if len(addrs) == 1 {
			delete(idAddrs, id)
		}
	}

	if len(idAddrs) == 0 {
		return nil
	}

	return idAddrs
}

// ParticipantsFromFlag numbers addresses from 1 in the order given.
func ParticipantsFromFlag(addresses []string, transport Transport) (ParticipantsConfig, error) {
	out := make(ParticipantsConfig, len(addresses))
	for i, addr := range addresses {
		sanitized, err := client.SanitizeAddress(addr)
		if err != nil {
			return nil, err
		}
		out[i] = RemoteParticipant{ID: i + 1, Address: sanitized, Transport: transport}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

type ExtractorConfig struct {
	Kind       string `yaml:"kind"`
	OllamaAddr string `yaml:"ollamaAddr,omitempty"`
	Model      string `yaml:"model,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
}

func (e ExtractorConfig) Validate() error {
	switch e.Kind {
	case "", ExtractorKeyword, ExtractorOllama:
	default:
		return fmt.Errorf("unknown extractor kind %q", e.Kind)
	}
	if e.OllamaAddr != "" {
		if _, err := url.Parse(e.OllamaAddr); err != nil {
			return fmt.Errorf("invalid ollamaAddr: %w", err)
		}
	}
	_, err := e.RequestTimeout()
	return err
}

func (e ExtractorConfig) RequestTimeout() (time.Duration, error) {
	if e.Timeout == "" {
		return DefaultExtractorTimeout, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid extractor timeout: %w", err)
	}
	return d, nil
}

type LedgerConfig struct {
	Endpoints     []string `yaml:"endpoints,omitempty"`
	ModuleAddress string   `yaml:"moduleAddress,omitempty"`
	Retries       uint     `yaml:"retries,omitempty"`
	DryRun        bool     `yaml:"dryRun"`
}

// Validate only requires endpoints when submissions are real.
func (l LedgerConfig) Validate() error {
	if l.DryRun {
		return nil
	}
	if len(l.Endpoints) == 0 {
		return fmt.Errorf("ledger endpoints can't be empty unless dryRun is set")
	}
	for _, e := range l.Endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return fmt.Errorf("invalid ledger endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("ledger endpoint %s must be http or https", e)
		}
	}
	if l.ModuleAddress == "" {
		return fmt.Errorf("ledger moduleAddress can't be empty unless dryRun is set")
	}
	return nil
}
