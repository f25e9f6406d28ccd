package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/config"
)

// workerIDEnvVar and workerPortEnvVar are the externally-documented names a
// worker process reads to identify itself. cluster.WorkerEnvVar
// (XYPRISSGO_WORKER_ID) is set alongside them purely so
// cluster.IsWorkerProcess keeps working as the framework's own internal
// re-spawn guard; the two are set to the same value.
const (
	workerIDEnvVar         = "WORKER_ID"
	workerPortEnvVar       = "WORKER_PORT"
	clusterModeEnvVar      = "CLUSTER_MODE"
	serverConfigBlobEnvVar = "XYPRISS_SERVER_CONFIG"
)

// buildSpawnFunc returns the cluster.SpawnFunc the Supervisor uses to start
// each worker: re-exec the current executable with the same arguments,
// carrying the merged config as a JSON blob so the child never has to
// re-read a config file that may differ between machines in a container
// rollout, plus the worker's own identity in its environment.
func buildSpawnFunc(cfg *config.ServerConfig) (cluster.SpawnFunc, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("app: resolve executable for worker spawn: %w", err)
	}
	blob, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: marshal config for worker spawn: %w", err)
	}

	return func(id string, env []string) (*exec.Cmd, error) {
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Env = append(append([]string(nil), os.Environ()...),
			workerIDEnvVar+"="+id,
			cluster.WorkerEnvVar+"="+id,
			clusterModeEnvVar+"=true",
			serverConfigBlobEnvVar+"="+string(blob),
		)
		cmd.Env = append(cmd.Env, env...)
		cmd.Stderr = os.Stderr
		return cmd, nil
	}, nil
}

// LoadConfig resolves the ServerConfig a process should run New with: a
// worker process (cluster.IsWorkerProcess) unmarshals the blob its
// supervisor passed in XYPRISS_SERVER_CONFIG rather than re-reading a
// config file that may differ between machines in a container rollout;
// every other process just calls config.Load. Exported so cmd/xyprissd and
// internal/wiring's ConfigModule share this decision instead of each
// re-implementing the IsWorkerProcess branch.
func LoadConfig() (*config.ServerConfig, error) {
	if !cluster.IsWorkerProcess() {
		return config.Load()
	}
	return loadWorkerConfig()
}

func loadWorkerConfig() (*config.ServerConfig, error) {
	blob := os.Getenv(serverConfigBlobEnvVar)
	if blob == "" {
		return config.Load()
	}
	var cfg config.ServerConfig
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return nil, fmt.Errorf("app: unmarshal %s: %w", serverConfigBlobEnvVar, err)
	}
	return &cfg, nil
}

// workerPort returns the port this worker should bind, overriding
// cfg.Server.Port with WORKER_PORT when the supervisor assigned one.
func workerPort(cfg config.ServerSection) int {
	if v := os.Getenv(workerPortEnvVar); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			return port
		}
	}
	return cfg.Port
}
