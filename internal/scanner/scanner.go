// Package scanner discovers conversion units beneath an input root.
//
// A unit is an immediate subdirectory holding at least one file whose name
// ends with the manifest extension. Scanning is read-only and deterministic:
// subdirectories are visited in lexical order and the lexically first
// manifest of each is chosen.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"hlsmerge/internal/logging"
)

// ErrInvalidInput reports an input root that is missing or not a directory.
var ErrInvalidInput = errors.New("invalid input directory")

// Unit maps one source folder to one output file.
type Unit struct {
	// Name is the folder name in Unicode NFC form.
	Name       string
	SourceDir  string
	Manifest   string
	OutputPath string
}

// ManifestPath returns the absolute path of the selected manifest.
func (u Unit) ManifestPath() string {
	return filepath.Join(u.SourceDir, u.Manifest)
}

// Scanner finds units. The zero value is not usable; construct with New.
type Scanner struct {
	manifestExt string
	outputExt   string
	logger      *slog.Logger
}

// New returns a scanner matching manifestExt (for example ".m3u8") and
// naming outputs with outputExt (for example ".mp4").
func New(manifestExt, outputExt string, logger *slog.Logger) *Scanner {
	return &Scanner{
		manifestExt: manifestExt,
		outputExt:   outputExt,
		logger:      logging.NewComponentLogger(logger, "scanner"),
	}
}

// ValidateDir reports ErrInvalidInput unless path is an existing directory.
func ValidateDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, path)
	}
	return nil
}

// Scan lists the units under inputDir whose outputs go to outputDir. An empty
// result with a nil error means there is nothing to convert.
func (s *Scanner) Scan(inputDir, outputDir string) ([]Unit, error) {
	if err := ValidateDir(inputDir); err != nil {
		return nil, err
	}
	inputDir, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve input directory: %w", err)
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	// ReadDir returns entries sorted by file name.
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var units []Unit
	for _, entry := range entries {
		dir := filepath.Join(inputDir, entry.Name())
		if !isDir(dir, entry) {
			continue
		}
		manifest, err := s.findManifest(dir)
		if err != nil {
			logging.WarnWithContext(s.logger, "subfolder unreadable; excluded from batch", "scan_folder_unreadable",
				logging.String("source_dir", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check folder permissions"),
				logging.String(logging.FieldImpact, "folder is not converted"),
			)
			continue
		}
		if manifest == "" {
			s.logger.Debug("folder has no manifest", logging.String("source_dir", dir))
			continue
		}
		name := norm.NFC.String(entry.Name())
		units = append(units, Unit{
			Name:       name,
			SourceDir:  dir,
			Manifest:   manifest,
			OutputPath: filepath.Join(outputDir, name+s.outputExt),
		})
	}
	return units, nil
}

func (s *Scanner) findManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), s.manifestExt) {
			continue
		}
		if isDir(filepath.Join(dir, entry.Name()), entry) {
			continue
		}
		return entry.Name(), nil
	}
	return "", nil
}

// isDir follows symlinks so linked unit folders are scanned too.
func isDir(path string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
