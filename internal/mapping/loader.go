package mapping

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// embedded holds the mapping files shipped with the binary.
//
//go:embed data/*.json
var embedded embed.FS

// embeddedDir is the directory inside embedded that holds mapping files.
const embeddedDir = "data"

// FileName returns the mapping file name for a model and firmware code,
// e.g. "model_PDPR1H1HAW100_FW539187.json".
func FileName(modelID, fwCode string) string {
	return fmt.Sprintf("model_%s_FW%s.json", modelID, NormalizeFirmware(fwCode))
}

// NormalizeFirmware strips a leading "FW" from a firmware code. Controllers
// report the code both with and without the prefix.
func NormalizeFirmware(fwCode string) string {
	return strings.TrimPrefix(fwCode, "FW")
}

// Loader resolves mapping tables by model and firmware.
//
// Files in the override directory take precedence over embedded ones so a
// site can ship a corrected mapping without a rebuild. Parsed tables are
// cached for the lifetime of the Loader.
type Loader struct {
	sources     []fs.FS
	overrideDir string

	mu    sync.Mutex
	cache map[string]*Table
}

// NewLoader creates a loader. An empty overrideDir uses only the embedded files.
func NewLoader(overrideDir string) *Loader {
	var sources []fs.FS
	if overrideDir != "" {
		sources = append(sources, os.DirFS(overrideDir))
	}
	if sub, err := fs.Sub(embedded, embeddedDir); err == nil {
		sources = append(sources, sub)
	}
	l := NewLoaderFS(sources...)
	l.overrideDir = overrideDir
	return l
}

// NewLoaderFS creates a loader reading from the given file systems, in order.
func NewLoaderFS(sources ...fs.FS) *Loader {
	return &Loader{
		sources: sources,
		cache:   make(map[string]*Table),
	}
}

// Load returns the table for a model and firmware code.
func (l *Loader) Load(modelID, fwCode string) (*Table, error) {
	if modelID == "" || NormalizeFirmware(fwCode) == "" {
		return nil, ErrInvalidIdentity
	}
	name := FileName(modelID, fwCode)

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.cache[name]; ok {
		return t, nil
	}

	for _, src := range l.sources {
		data, err := fs.ReadFile(src, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		t, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		l.cache[name] = t
		return t, nil
	}

	if l.overrideDir == "" {
		return nil, fmt.Errorf("%w: %s is not embedded and no mapping directory is set", ErrMappingNotFound, name)
	}
	return nil, fmt.Errorf("%w: %s not in %s or embedded", ErrMappingNotFound, name, l.overrideDir)
}

// Firmware identifier quirk: PDHC1H1HAR1V1 controllers on firmware 539224
// publish their fields under the PDPR1H1HAR1V0 model prefix.
const (
	quirkModelID    = "PDHC1H1HAR1V1"
	quirkFirmware   = "539224"
	quirkPrefixedAs = "PDPR1H1HAR1V0"
)

// PrefixModel returns the model ID a controller uses in its field keys.
func PrefixModel(modelID, fwCode string) string {
	if modelID == quirkModelID && NormalizeFirmware(fwCode) == quirkFirmware {
		return quirkPrefixedAs
	}
	return modelID
}

// KeyPrefix returns the field key prefix "<MODEL>_FW<FW_CODE>_".
func KeyPrefix(modelID, fwCode string) string {
	return PrefixModel(modelID, fwCode) + "_FW" + NormalizeFirmware(fwCode) + "_"
}
