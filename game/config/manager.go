// Package config loads and caches deployment configurations for the Bart
// Multiplayer Server. A deployment configuration fixes the room policy for
// one process: capacity, how room keys are sourced (caller code vs. generated
// id), and whether the room directory is broadcast for discovery.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bartgame/multiplayer-server/game/room"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// JoinPolicy selects how rooms come into existence.
type JoinPolicy string

const (
	// JoinByCode lets join_server create the room implicitly from a
	// caller-supplied code. create_server is rejected under this policy.
	JoinByCode JoinPolicy = "code"

	// JoinByID requires create_server to mint an opaque server-generated
	// key; join_server only attaches to rooms that already exist.
	JoinByID JoinPolicy = "id"
)

// Deployment is the JSON shape of one deployment configuration file.
type Deployment struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	MaxPlayers  int        `json:"max_players"`
	JoinPolicy  JoinPolicy `json:"join_policy"`
	Discovery   bool       `json:"discovery"`
	KeyLength   int        `json:"key_length,omitempty"`
}

// Info summarizes an available deployment configuration file.
type Info struct {
	Filename    string     `json:"filename"`
	ConfigID    string     `json:"config_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	MaxPlayers  int        `json:"max_players"`
	JoinPolicy  JoinPolicy `json:"join_policy"`
}

// Validate checks a deployment configuration for internal consistency.
func Validate(d *Deployment) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.MaxPlayers <= 0 {
		return fmt.Errorf("max_players must be positive, got %d", d.MaxPlayers)
	}
	switch d.JoinPolicy {
	case JoinByCode, JoinByID:
	default:
		return fmt.Errorf("join_policy must be %q or %q, got %q", JoinByCode, JoinByID, d.JoinPolicy)
	}
	if d.Discovery && d.JoinPolicy != JoinByID {
		return fmt.Errorf("discovery requires join_policy %q", JoinByID)
	}
	if d.KeyLength < 0 {
		return fmt.Errorf("key_length must not be negative, got %d", d.KeyLength)
	}
	if d.KeyLength > 0 && d.JoinPolicy != JoinByID {
		return fmt.Errorf("key_length only applies to join_policy %q", JoinByID)
	}
	return nil
}

// Manager handles deployment configuration loading and caching.
type Manager struct {
	configDir         string
	defaultDeployment *Deployment
	deployments       map[string]*Deployment
	mu                sync.RWMutex
}

// NewManager creates a configuration manager rooted at configDir.
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir:   configDir,
		deployments: make(map[string]*Deployment),
	}

	if err := m.loadDefaultDeployment(); err != nil {
		return nil, fmt.Errorf("failed to load default deployment: %w", err)
	}

	return m, nil
}

// Load loads a deployment configuration by name.
func (m *Manager) Load(name string) (*Deployment, error) {
	m.mu.RLock()
	if deployment, exists := m.deployments[name]; exists {
		m.mu.RUnlock()
		return deployment, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if deployment, exists := m.deployments[name]; exists {
		return deployment, nil
	}

	filename := name
	if !strings.HasSuffix(filename, ".json") {
		filename = name + ".json"
	}
	configPath := filepath.Join(m.configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var deployment Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&deployment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.deployments[name] = &deployment
	return &deployment, nil
}

// List returns information about all available deployment configurations.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")

		deployment, err := m.Load(name)
		if err != nil {
			// Skip invalid configs
			continue
		}

		infos = append(infos, &Info{
			Filename:    entry.Name(),
			ConfigID:    name,
			Name:        deployment.Name,
			Description: deployment.Description,
			MaxPlayers:  deployment.MaxPlayers,
			JoinPolicy:  deployment.JoinPolicy,
		})
	}

	return infos, nil
}

// GetDefault returns the default deployment configuration.
func (m *Manager) GetDefault() *Deployment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultDeployment
}

// SetDefault sets the default deployment configuration by name.
func (m *Manager) SetDefault(name string) error {
	deployment, err := m.Load(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultDeployment = deployment
	return nil
}

// loadDefaultDeployment picks classic.json when present, then the first
// usable file, then the built-in minimal deployment.
func (m *Manager) loadDefaultDeployment() error {
	deployment, err := m.Load("classic")
	if err != nil {
		infos, listErr := m.List()
		if listErr != nil || len(infos) == 0 {
			m.defaultDeployment = minimalDeployment()
			return nil
		}

		deployment, err = m.Load(infos[0].ConfigID)
		if err != nil {
			m.defaultDeployment = minimalDeployment()
			return nil
		}
	}

	m.defaultDeployment = deployment
	return nil
}

// minimalDeployment is the built-in fallback: classic join-by-code rooms of
// four players with no discovery list.
func minimalDeployment() *Deployment {
	return &Deployment{
		Name:        "default",
		Description: "Default minimal deployment",
		MaxPlayers:  room.DefaultCapacity,
		JoinPolicy:  JoinByCode,
	}
}
