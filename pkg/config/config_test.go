package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
)

func validThresholdConfig() config.Config {
	return config.Config{
		ThresholdModeConfig: &config.ThresholdModeConfig{
			Threshold: 2,
			Participants: config.ParticipantsConfig{
				{ID: 1, Address: "127.0.0.1:8001"},
				{ID: 2, Address: "http://127.0.0.1:8002", Transport: config.TransportHTTP},
				{ID: 3, Address: "127.0.0.1:9003", Transport: config.TransportGRPC},
			},
			Timeout: "30s",
		},
		Ledger: config.LedgerConfig{DryRun: true},
	}
}

func TestValidateThresholdModeConfig(t *testing.T) {
	type testCase struct {
		name      string
		mutate    func(c *config.Config)
		expectErr string
	}

	testCases := []testCase{
		{
			name:   "valid config",
			mutate: func(c *config.Config) {},
		},
		{
			name:      "nil threshold mode",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig = nil },
			expectErr: "threshold mode config can't be empty",
		},
		{
			name:      "threshold zero",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Threshold = 0 },
			expectErr: "threshold (0) must be at least 1",
		},
		{
			name:      "threshold above participants",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Threshold = 4 },
			expectErr: "number of participants (3) must be greater or equal to threshold (4)",
		},
		{
			name:      "bad timeout",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Timeout = "soon" },
			expectErr: `invalid timeout: time: invalid duration "soon"`,
		},
		{
			name:      "duplicate id",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Participants[2].ID = 2 },
			expectErr: "found duplicate participant id(s): map[2:[http://127.0.0.1:8002 127.0.0.1:9003]]",
		},
		{
			name:      "id out of range",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Participants[2].ID = 4 },
			expectErr: "participant id 4 is out of range, must be between 1 and 3, inclusive",
		},
		{
			name:      "unknown transport",
			mutate:    func(c *config.Config) { c.ThresholdModeConfig.Participants[0].Transport = "udp" },
			expectErr: `participant 1 has unknown transport "udp"`,
		},
		{
			name: "ledger without endpoints",
			mutate: func(c *config.Config) {
				c.Ledger.DryRun = false
			},
			expectErr: "ledger endpoints can't be empty unless dryRun is set",
		},
		{
			name: "ledger without module",
			mutate: func(c *config.Config) {
				c.Ledger = config.LedgerConfig{Endpoints: []string{"https://rpc.example.com"}}
			},
			expectErr: "ledger moduleAddress can't be empty unless dryRun is set",
		},
		{
			name: "ledger endpoint scheme",
			mutate: func(c *config.Config) {
				c.Ledger = config.LedgerConfig{Endpoints: []string{"ftp://rpc.example.com"}, ModuleAddress: "0x1"}
			},
			expectErr: "ledger endpoint ftp://rpc.example.com must be http or https",
		},
	}

	for _, tc := range testCases {
		c := validThresholdConfig()
		tc.mutate(&c)
		err := c.ValidateThresholdModeConfig()
		if tc.expectErr == "" {
			require.NoError(t, err, tc.name)
		} else {
			require.EqualError(t, err, tc.expectErr, tc.name)
		}
	}
}

func TestValidateParticipantConfig(t *testing.T) {
	c := config.Config{
		Participant: &config.ParticipantConfig{ID: 1, ListenAddr: "0.0.0.0:8001", GRPCAddr: "0.0.0.0:9001"},
		Extractor:   config.ExtractorConfig{Kind: config.ExtractorOllama, Timeout: "90s"},
	}
	require.NoError(t, c.ValidateParticipantConfig())

	c.Extractor.Kind = "oracle"
	require.EqualError(t, c.ValidateParticipantConfig(), `unknown extractor kind "oracle"`)
	c.Extractor.Kind = ""

	c.Participant.ListenAddr = "8001"
	require.ErrorContains(t, c.ValidateParticipantConfig(), "invalid listenAddr")
	c.Participant.ListenAddr = ":8001"

	c.Participant.ID = 0
	require.EqualError(t, c.ValidateParticipantConfig(), "participant id (0) must be at least 1")

	c.Participant = nil
	require.EqualError(t, c.ValidateParticipantConfig(), "participant config can't be empty")
}

func TestTimeouts(t *testing.T) {
	tm := config.ThresholdModeConfig{}
	d, err := tm.CallTimeout()
	require.NoError(t, err)
	require.Equal(t, config.DefaultCallTimeout, d)

	tm.Timeout = "-1s"
	_, err = tm.CallTimeout()
	require.Error(t, err)

	e := config.ExtractorConfig{Timeout: "45s"}
	d, err = e.RequestTimeout()
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)
}

func TestRuntimeConfigPaths(t *testing.T) {
	c := config.RuntimeConfig{HomeDir: "/home/user/.oracle"}
	require.Equal(t, "/home/user/.oracle/public_keys.json", c.KeyFilePath())
	require.Equal(t, "/home/user/.oracle/share.json", c.ShareFilePath())
	require.Equal(t, "/home/user/.oracle/audit.db", c.AuditDBPath())

	c.Config.KeyFile = "/etc/oracle/keys.json"
	c.Config.Participant = &config.ParticipantConfig{ShareFile: "participant_2/share.json"}
	c.Config.AuditDB = "state/audit.db"
	require.Equal(t, "/etc/oracle/keys.json", c.KeyFilePath())
	require.Equal(t, "/home/user/.oracle/participant_2/share.json", c.ShareFilePath())
	require.Equal(t, "/home/user/.oracle/state/audit.db", c.AuditDBPath())
}

func TestRuntimeConfigKeyFileExists(t *testing.T) {
	dir := t.TempDir()
	c := config.RuntimeConfig{HomeDir: dir}

	_, err := c.KeyFileExists()
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.Mkdir(filepath.Join(dir, config.DefaultShareFile), 0700))
	_, err = c.ShareFileExists()
	require.ErrorContains(t, err, "path is not a file")

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultKeyFile), []byte("{}"), 0600))
	file, err := c.KeyFileExists()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, config.DefaultKeyFile), file)
}

func TestRuntimeConfigWriteConfigFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	c := config.RuntimeConfig{
		ConfigFile: configFile,
		Config: config.Config{
			KeyFile: config.DefaultKeyFile,
			ThresholdModeConfig: &config.ThresholdModeConfig{
				Threshold: 2,
				Participants: config.ParticipantsConfig{
					{ID: 1, Address: "127.0.0.1:8001", Transport: config.TransportHTTP},
					{ID: 2, Address: "127.0.0.1:8002"},
				},
				Timeout:     "30s",
				HealthCheck: true,
			},
			Extractor: config.ExtractorConfig{Kind: config.ExtractorKeyword},
			Ledger:    config.LedgerConfig{DryRun: true},
			DebugAddr: config.DefaultDebugAddr,
		},
	}

	require.NoError(t, c.WriteConfigFile())
	configYamlBz, err := os.ReadFile(configFile)
	require.NoError(t, err)
	require.Equal(t, `keyFile: public_keys.json
thresholdMode:
  threshold: 2
  participants:
  - id: 1
    address: 127.0.0.1:8001
    transport: http
  - id: 2
    address: 127.0.0.1:8002
  timeout: 30s
  healthCheck: true
extractor:
  kind: keyword
ledger:
  dryRun: true
debugAddr: localhost:8543
`, string(configYamlBz))

	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(configYamlBz, &decoded))
	require.Equal(t, c.Config, decoded)
}

func TestParticipantsFromFlag(t *testing.T) {
	participants, err := config.ParticipantsFromFlag(
		[]string{"localhost:8001", "http://localhost:8002", "localhost:8003"},
		config.TransportHTTP,
	)
	require.NoError(t, err)
	require.Equal(t, config.ParticipantsConfig{
		{ID: 1, Address: "localhost:8001", Transport: config.TransportHTTP},
		{ID: 2, Address: "localhost:8002", Transport: config.TransportHTTP},
		{ID: 3, Address: "localhost:8003", Transport: config.TransportHTTP},
	}, participants)

	_, err = config.ParticipantsFromFlag([]string{"localhost"}, config.TransportHTTP)
	require.Error(t, err)
}
