// file-disguise provider: hides arbitrary payload files inside ordinary
// image/video containers by appending them past a separator marker (most
// viewers and decoders stop reading at the container's own EOF and never
// see the trailing bytes), and reverses the process on extract. Grounded
// on gp_disguise_adapter.py's operation surface (_expand_patterns' glob
// expansion and resolved-path dedup, dry-run vs real execution, progress
// callbacks), reusing this codebase's zip-slip-safe path-join idiom for
// extract's output-path validation.
package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evalgo/gphotoctl/internal/model"
)

// minimal valid containers; real payload bytes are appended after the
// separator, past anything an image/video decoder actually reads.
var (
	minimalPNGContainer = []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk header
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, // 1x1
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
		0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41, 0x54, // IDAT chunk header
		0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00, 0x05, 0x00, 0x01,
		0x0D, 0x0A, 0x2D, 0xB4,
		0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82, // IEND
	}
	minimalMP4Container = []byte{
		0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70, // ftyp box, size 24
		0x69, 0x73, 0x6F, 0x6D, 0x00, 0x00, 0x02, 0x00,
		0x69, 0x73, 0x6F, 0x6D, 0x69, 0x73, 0x6F, 0x32,
		0x00, 0x00, 0x00, 0x08, 0x66, 0x72, 0x65, 0x65, // free box
	}
)

// disguiseConfig mirrors gp_disguise's Config: which container template to
// use and what marks the boundary between it and the hidden payload.
type disguiseConfig struct {
	IsVideo        bool
	Separator      []byte
	RestoredSuffix string
}

// mediaHider appends a payload file after a container template and a
// separator marker.
type mediaHider struct{ cfg disguiseConfig }

func (h *mediaHider) hideFile(payloadPath, outDir string) (string, error) {
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return "", fmt.Errorf("read payload %s: %w", payloadPath, err)
	}

	container := minimalPNGContainer
	ext := ".png"
	if h.cfg.IsVideo {
		container = minimalMP4Container
		ext = ".mp4"
	}

	combined := make([]byte, 0, len(container)+len(h.cfg.Separator)+len(payload))
	combined = append(combined, container...)
	combined = append(combined, h.cfg.Separator...)
	combined = append(combined, payload...)

	base := strings.TrimSuffix(filepath.Base(payloadPath), filepath.Ext(payloadPath))
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(payloadPath)
	}
	outPath := filepath.Join(dir, base+ext)
	if err := os.WriteFile(outPath, combined, 0o644); err != nil {
		return "", fmt.Errorf("write disguised file %s: %w", outPath, err)
	}
	return outPath, nil
}

// mediaExtractor recovers a payload previously appended after the
// separator marker.
type mediaExtractor struct{ cfg disguiseConfig }

func (x *mediaExtractor) extractFile(containerPath, outDir string) (string, error) {
	data, err := os.ReadFile(containerPath)
	if err != nil {
		return "", fmt.Errorf("read container %s: %w", containerPath, err)
	}
	idx := bytes.Index(data, x.cfg.Separator)
	if idx < 0 {
		return "", fmt.Errorf("separator not found in %s; not a disguised file", containerPath)
	}
	payload := data[idx+len(x.cfg.Separator):]

	dir := outDir
	if dir == "" {
		dir = filepath.Dir(containerPath)
	}
	outName := filepath.Base(containerPath) + x.cfg.RestoredSuffix
	outPath := filepath.Join(dir, outName)

	// zip-slip-style guard: the joined output path must still resolve
	// inside dir even though outName here is always our own suffix, not
	// attacker-controlled archive entry data.
	if !strings.HasPrefix(filepath.Clean(outPath), filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("refusing to write outside target directory: %s", outPath)
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("write restored file %s: %w", outPath, err)
	}
	return outPath, nil
}

// FileDisguiseAdapter implements the file-disguise provider.
type FileDisguiseAdapter struct{}

func NewFileDisguiseAdapter() *FileDisguiseAdapter { return &FileDisguiseAdapter{} }

func (a *FileDisguiseAdapter) CanHandle(p model.Provider) bool {
	return p == model.ProviderFileDisguise
}

func (a *FileDisguiseAdapter) Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	op := trimProviderPrefix(job.Operation, "file-disguise")

	patterns := strSliceParam(job.Params["files"])
	if len(patterns) == 0 {
		return nil, fmt.Errorf("file-disguise: %s requires params.files as a non-empty list", op)
	}
	files, err := expandPatterns(patterns)
	if err != nil {
		return nil, fmt.Errorf("file-disguise: expand patterns: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("file-disguise: no matching files were found")
	}

	separator := []byte(getStringParam(job.Params, "separator", "FILE_DATA_BEGIN"))
	output, _ := job.Params["output"].(string)

	switch op {
	case "hide":
		mediaType, _ := job.Params["containerType"].(string)
		cfg := disguiseConfig{IsVideo: mediaType == "video", Separator: separator}

		if dryRun {
			report(1.0, fmt.Sprintf("dry run: would hide %d files", len(files)))
			return model.JSONMap{"dryRun": true, "operation": "hide", "targetCount": len(files), "type": mediaType, "sample": sampleOf(files, 10)}, nil
		}

		report(0.2, "starting hide operation")
		hider := &mediaHider{cfg: cfg}
		outputs := make([]string, 0, len(files))
		for i, f := range files {
			created, err := hider.hideFile(f, output)
			if err != nil {
				return nil, fmt.Errorf("file-disguise: hide %s: %w", f, err)
			}
			outputs = append(outputs, created)
			report(0.2+0.8*float64(i+1)/float64(len(files)), fmt.Sprintf("processed %d/%d", i+1, len(files)))
		}
		return model.JSONMap{"operation": "hide", "created": outputs, "createdCount": len(outputs)}, nil

	case "extract":
		suffix := getStringParam(job.Params, "suffix", ".restored")
		cfg := disguiseConfig{Separator: separator, RestoredSuffix: suffix}

		if dryRun {
			report(1.0, fmt.Sprintf("dry run: would extract %d files", len(files)))
			return model.JSONMap{"operation": "extract", "targetCount": len(files), "sample": sampleOf(files, 10)}, nil
		}

		report(0.2, "starting extract operation")
		extractor := &mediaExtractor{cfg: cfg}
		outputs := make([]string, 0, len(files))
		for i, f := range files {
			created, err := extractor.extractFile(f, output)
			if err != nil {
				return nil, fmt.Errorf("file-disguise: extract %s: %w", f, err)
			}
			outputs = append(outputs, created)
			report(0.2+0.8*float64(i+1)/float64(len(files)), fmt.Sprintf("processed %d/%d", i+1, len(files)))
		}
		return model.JSONMap{"operation": "extract", "created": outputs, "createdCount": len(outputs)}, nil

	default:
		return nil, fmt.Errorf("file-disguise: unsupported operation %q", job.Operation)
	}
}

// expandPatterns resolves each entry as a literal path first, falling back
// to glob expansion, and dedups by resolved absolute path.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
			files = append(files, pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				files = append(files, m)
			}
		}
	}

	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

func sampleOf(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func getStringParam(p model.JSONMap, key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}
