// Package version reports build information for the oracle binary.
//
// Version, Commit and CryptoVersion are set at build time:
//
//	go build -ldflags "-X github.com/strangelove-ventures/fomc-oracle/version.Version=1.0 \
//	  -X github.com/strangelove-ventures/fomc-oracle/version.Commit=f0f7b7dab7e36c20b757cebce0e8f4fc5b95de60"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// application's version string
	Version = ""
	// commit
	Commit = ""
	// gnark-crypto version, read from build info when empty
	CryptoVersion = ""
)

const cryptoModule = "github.com/consensys/gnark-crypto"

// Info defines the application version information.
type Info struct {
	Version       string `json:"version" yaml:"version"`
	GitCommit     string `json:"commit" yaml:"commit"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	CryptoVersion string `json:"gnark_crypto_version" yaml:"gnark_crypto_version"`
	Ciphersuite   string `json:"ciphersuite" yaml:"ciphersuite"`
}

func NewInfo(ciphersuite string) Info {
	return Info{
		Version:       Version,
		GitCommit:     Commit,
		GoVersion:     fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		CryptoVersion: cryptoVersion(),
		Ciphersuite:   ciphersuite,
	}
}

func cryptoVersion() string {
	if CryptoVersion != "" {
		return CryptoVersion
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == cryptoModule {
				return dep.Version
			}
		}
	}
	return ""
}

func (vi Info) String() string {
	return fmt.Sprintf(`oracle: %s
git commit: %s
%s
gnark-crypto: %s
ciphersuite: %s`,
		vi.Version, vi.GitCommit, vi.GoVersion, vi.CryptoVersion, vi.Ciphersuite,
	)
}
