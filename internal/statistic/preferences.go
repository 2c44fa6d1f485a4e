package statistic

import (
	json "github.com/goccy/go-json"
	"os"

	"smd/internal/alerts"
	"smd/internal/providers"
	"smd/internal/statistic/interfaces"
)

// PreferencesManager persists the user-level alert preferences (mute
// flag, cooldown) across restarts, zstd-compressed with an atomic
// tmp+rename write.
type PreferencesManager struct {
	throttler  *alerts.Throttler
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewPreferencesManager(compressor interfaces.CompressorInterface, throttler *alerts.Throttler, logger providers.Logger) *PreferencesManager {
	return &PreferencesManager{
		throttler:  throttler,
		compressor: compressor,
		logger:     logger,
	}
}

func (p *PreferencesManager) SaveToFile(fileName string) error {
	prefs := p.throttler.Snapshot()

	jsonData, err := json.Marshal(&prefs)
	if err != nil {
		return err
	}
	data, err := p.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (p *PreferencesManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressedData, err := p.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var prefs alerts.Preferences
	if err := json.Unmarshal(decompressedData, &prefs); err != nil {
		p.logger.Warnf(providers.TypeApp, "Inconsistent preferences file, keeping defaults")
		return err
	}

	p.throttler.Apply(prefs)
	return nil
}

func (p *PreferencesManager) Close() {
	p.compressor.Close()
}
