// Package config holds the host-provided settings the control core reads
// once per tick, plus their on-disk persistence. The host owns mutation; the
// core takes a read-only view.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/billgraziano/dpapi"
	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

// CaptureMode selects the host capture backend. The core only uses it to
// pick the matching key input kind.
type CaptureMode string

const (
	CaptureBitBlt                 CaptureMode = "bitblt"
	CaptureBitBltArea             CaptureMode = "bitblt_area"
	CaptureWindowsGraphicsCapture CaptureMode = "windows_graphics_capture"
)

// InputMethod selects how key inputs reach the game.
type InputMethod string

const (
	InputDefault InputMethod = "default"
	InputRpc     InputMethod = "rpc"
)

type Settings struct {
	CaptureMode CaptureMode `yaml:"capture_mode"`
	InputMethod InputMethod `yaml:"input_method"`
	// InputMethodRpcServerURL is the websocket endpoint of the input helper
	// when InputMethod is rpc.
	InputMethodRpcServerURL string `yaml:"input_method_rpc_server_url"`
	// InputMethodRpcToken is the helper's auth token, sealed with DPAPI at
	// rest. Use SealRpcToken/UnsealRpcToken.
	InputMethodRpcToken string `yaml:"input_method_rpc_token"`

	CycleRunDurationMillis  uint64 `yaml:"cycle_run_duration_millis"`
	CycleStopDurationMillis uint64 `yaml:"cycle_stop_duration_millis"`
	// StopOnFailOrChangeMap halts the bot when the minimap changes
	// unexpectedly or detection fails for too long.
	StopOnFailOrChangeMap bool `yaml:"stop_on_fail_or_change_map"`

	NotifyOnRuneAppear      bool `yaml:"notify_on_rune_appear"`
	NotifyOnEliteBossAppear bool `yaml:"notify_on_elite_boss_appear"`
	NotifyOnOtherPlayer     bool `yaml:"notify_on_other_player"`
}

func DefaultSettings() Settings {
	return Settings{
		CaptureMode:             CaptureBitBlt,
		InputMethod:             InputDefault,
		CycleRunDurationMillis:  30 * 60 * 1000,
		CycleStopDurationMillis: 10 * 60 * 1000,
		NotifyOnRuneAppear:      true,
		NotifyOnEliteBossAppear: true,
	}
}

// Seeds is the persisted RNG seed. It is written once on first run and never
// regenerated, so behavior stays fixed across reloads.
type Seeds struct {
	Seed uint64 `yaml:"seed"`
}

func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

// SaveSettings writes settings to path, backing up the previous file first.
func SaveSettings(path string, settings Settings) error {
	if _, err := os.Stat(path); err == nil {
		if err := cp.Copy(path, path+".bkp"); err != nil {
			return fmt.Errorf("backing up settings: %w", err)
		}
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSeeds returns the persisted seed, creating one from fallback when the
// file does not exist yet.
func LoadSeeds(path string, fallback uint64) (Seeds, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		seeds := Seeds{Seed: fallback}
		out, err := yaml.Marshal(seeds)
		if err != nil {
			return seeds, err
		}
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return seeds, err
		}
		return seeds, os.WriteFile(path, out, 0644)
	}
	if err != nil {
		return Seeds{}, fmt.Errorf("reading seeds: %w", err)
	}
	var seeds Seeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return Seeds{}, fmt.Errorf("parsing seeds: %w", err)
	}
	return seeds, nil
}

// SealRpcToken encrypts a plaintext token for storage in Settings.
func SealRpcToken(token string) (string, error) {
	return dpapi.Encrypt(token)
}

// UnsealRpcToken decrypts a token previously sealed with SealRpcToken.
func UnsealRpcToken(sealed string) (string, error) {
	return dpapi.Decrypt(sealed)
}
