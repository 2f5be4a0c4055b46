package node_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	cometservice "github.com/cometbft/cometbft/libs/service"
	fork "github.com/kraken-hpc/go-fork"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/fomc-oracle/pkg/node"
)

func init() {
	fork.RegisterFunc("child", mockOracleChildProcess)
	fork.Init()
}

func mockOracleChildProcess(pidFilePath string) {
	_ = os.WriteFile(
		pidFilePath,
		[]byte(fmt.Sprintf("%d\n", os.Getpid())),
		0600,
	)
}

// waitForFileToExist waits for a file to exist, returning an error if it does not exist after timeout.
func waitForFileToExist(file string, timeout time.Duration) error {
	exp := time.After(timeout)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-exp:
			return fmt.Errorf("timed out")
		case <-tick.C:
			if _, err := os.Stat(file); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			return nil
		}
	}
}

func TestIsRunning(t *testing.T) {
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")

	// go-fork starts a child with our args[0], standing in for a running oracle.
	require.NoError(t, fork.Fork("child", pidFilePath))
	require.NoError(t, waitForFileToExist(pidFilePath, time.Second))

	pidBz, err := os.ReadFile(pidFilePath)
	require.NoError(t, err)

	err = node.RequireNotRunning(cometlog.NewNopLogger(), pidFilePath)
	expectedErrorMsg := fmt.Sprintf("oracle is already running on PID: %s", strings.TrimSpace(string(pidBz)))
	require.EqualError(t, err, expectedErrorMsg)
}

func TestIsNotRunning(t *testing.T) {
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")
	require.NoError(t, node.RequireNotRunning(cometlog.NewNopLogger(), pidFilePath))
}

func TestRequireNotRunningBadPidFile(t *testing.T) {
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")
	require.NoError(t, os.WriteFile(pidFilePath, []byte("not a pid\n"), 0600))

	err := node.RequireNotRunning(cometlog.NewNopLogger(), pidFilePath)
	require.ErrorContains(t, err, "manual deletion of PID file required")
}

func maxPid() int {
	const defaultMaxPid = 100000
	maxPidBytes, err := os.ReadFile("/proc/sys/kernel/pid_max")
	if err != nil {
		return defaultMaxPid
	}
	maxPid, err := strconv.ParseInt(strings.TrimSpace(string(maxPidBytes)), 10, 32)
	if err != nil {
		return defaultMaxPid
	}
	return int(maxPid)
}

func getUnusedPid() (int, error) {
	max := maxPid()
	for pid := 1; pid <= max; pid++ {
		process, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		err = process.Signal(syscall.Signal(0))
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrProcessDone) {
			return pid, nil
		}
	}
	return -1, errors.New("could not find unused PID")
}

func TestIsRunningNonExistentPid(t *testing.T) {
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")

	pid, err := getUnusedPid()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(pidFilePath, []byte(fmt.Sprintf("%d\n", pid)), 0600))

	err = node.RequireNotRunning(cometlog.NewNopLogger(), pidFilePath)
	require.NoError(t, err)

	_, err = os.Stat(pidFilePath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConcurrentStart(t *testing.T) {
	concurrentAttempts := 10
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")

	logger := cometlog.NewNopLogger()
	var services []cometservice.Service

	var wg sync.WaitGroup
	wg.Add(concurrentAttempts - 1)
	var panicCount int
	var countMu sync.Mutex

	for i := 0; i < concurrentAttempts; i++ {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					countMu.Lock()
					panicCount++
					countMu.Unlock()
					wg.Done()
				}
			}()
			node.WaitAndTerminate(logger, services, pidFilePath)
		}()
	}

	wg.Wait()

	require.FileExists(t, pidFilePath, "PID file does not exist")
	require.Equal(t, concurrentAttempts-1, panicCount, "did not panic")
}

func TestIsRunningAndWaitForService(t *testing.T) {
	pidFilePath := filepath.Join(t.TempDir(), "oracle.pid")

	logger := cometlog.NewNopLogger()
	var services []cometservice.Service
	go func() { node.WaitAndTerminate(logger, services, pidFilePath) }()

	require.NoError(t, waitForFileToExist(pidFilePath, time.Second))

	panicFunction := func() {
		_ = node.RequireNotRunning(logger, pidFilePath)
	}
	require.Panics(t, panicFunction, "should panic because the pid file holds our own PID")
}
