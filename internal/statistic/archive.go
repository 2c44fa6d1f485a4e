package statistic

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/statistic/interfaces"
)

// archiveFile is the on-disk format for one camera's finished runs.
type archiveFile struct {
	Runs []models.SessionRun `json:"runs"`
}

// StatsArchive keeps the cumulative stats of finished streaming runs,
// one zstd-compressed JSON file per camera. Appends go to a pending
// buffer; Flush writes them out. The live monitoring path never blocks
// on disk I/O.
type StatsArchive struct {
	mu         sync.Mutex
	dir        string
	pending    map[string][]models.SessionRun
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewStatsArchive(dir string, compressor interfaces.CompressorInterface, logger providers.Logger) *StatsArchive {
	return &StatsArchive{
		dir:        dir,
		pending:    make(map[string][]models.SessionRun),
		compressor: compressor,
		logger:     logger,
	}
}

// Append buffers one finished run for later flush. No disk I/O.
func (a *StatsArchive) Append(run models.SessionRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[run.CameraID] = append(a.pending[run.CameraID], run)
}

// Flush merges all pending runs into their per-camera files.
func (a *StatsArchive) Flush() error {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[string][]models.SessionRun)
	a.mu.Unlock()

	for cameraID, runs := range pending {
		if err := a.appendToFile(cameraID, runs); err != nil {
			// Put the runs back so the next flush retries them.
			a.mu.Lock()
			a.pending[cameraID] = append(runs, a.pending[cameraID]...)
			a.mu.Unlock()
			return err
		}
	}
	return nil
}

// History returns all archived runs for a camera, flushed and pending,
// oldest first.
func (a *StatsArchive) History(cameraID string) ([]models.SessionRun, error) {
	stored, err := a.readFile(cameraID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	pending := a.pending[cameraID]
	a.mu.Unlock()

	runs := make([]models.SessionRun, 0, len(stored)+len(pending))
	runs = append(runs, stored...)
	runs = append(runs, pending...)
	return runs, nil
}

func (a *StatsArchive) appendToFile(cameraID string, runs []models.SessionRun) error {
	stored, err := a.readFile(cameraID)
	if err != nil {
		return err
	}

	file := archiveFile{Runs: append(stored, runs...)}
	jsonData, err := json.Marshal(&file)
	if err != nil {
		return err
	}
	data, err := a.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	path := a.filePath(cameraID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (a *StatsArchive) readFile(cameraID string) ([]models.SessionRun, error) {
	data, err := os.ReadFile(a.filePath(cameraID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	jsonData, err := a.compressor.Decompress(data)
	if err != nil {
		a.logger.Warnf(providers.TypeApp, "Corrupt archive file for camera %s: %s", cameraID, err)
		return nil, err
	}

	var file archiveFile
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return nil, err
	}
	return file.Runs, nil
}

func (a *StatsArchive) filePath(cameraID string) string {
	return filepath.Join(a.dir, "runs-"+cameraID+".zst")
}
