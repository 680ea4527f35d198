package transmit

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ArchiveFailure is returned by TextArchive.Write when nothing was stored.
const ArchiveFailure int64 = math.MinInt64

// TextArchive stores product text by PIL. Write returns the insert time in
// Unix milliseconds, or ArchiveFailure.
type TextArchive interface {
	Write(ctx context.Context, pil, text string, operational bool) int64
}

// FileArchive is a TextArchive that keeps one file per write under
// <dir>/<pil>/. Practice products go under <dir>/practice/<pil>/.
type FileArchive struct {
	Dir    string
	Logger zerolog.Logger
	Now    func() time.Time
}

// Write implements TextArchive.
func (a *FileArchive) Write(ctx context.Context, pil, text string, operational bool) int64 {
	if err := ctx.Err(); err != nil {
		return ArchiveFailure
	}
	pil = strings.ToUpper(strings.TrimSpace(pil))
	if pil == "" || strings.ContainsAny(pil, `/\.`) {
		a.Logger.Error().Str("pil", pil).Msg("transmit: archive: invalid pil")
		return ArchiveFailure
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	at := now().UTC()

	dir := filepath.Join(a.Dir, pil)
	if !operational {
		dir = filepath.Join(a.Dir, "practice", pil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.Logger.Error().Err(err).Str("pil", pil).Msg("transmit: archive: create directory failed")
		return ArchiveFailure
	}
	path := filepath.Join(dir, at.Format("20060102T150405.000")+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		a.Logger.Error().Err(err).Str("path", path).Msg("transmit: archive: write failed")
		return ArchiveFailure
	}
	a.Logger.Debug().Str("pil", pil).Str("path", path).Msg("transmit: archived")
	return at.UnixMilli()
}

// Latest returns the newest archived text for a PIL.
func (a *FileArchive) Latest(pil string, operational bool) (string, error) {
	dir := filepath.Join(a.Dir, strings.ToUpper(pil))
	if !operational {
		dir = filepath.Join(a.Dir, "practice", strings.ToUpper(pil))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("transmit: archive: read %s: %w", pil, err)
	}
	var newest string
	for _, e := range entries {
		if !e.IsDir() && e.Name() > newest {
			newest = e.Name()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("transmit: archive: nothing stored for %s", pil)
	}
	b, err := os.ReadFile(filepath.Join(dir, newest))
	if err != nil {
		return "", fmt.Errorf("transmit: archive: read %s: %w", pil, err)
	}
	return string(b), nil
}

// Forwarder hands a non-local NWWS product to the dissemination pipeline.
type Forwarder interface {
	Forward(ctx context.Context, h Header, text string, operational bool) error
}

// SpoolForwarder drops products into the outgoing spool directory, where
// the dissemination process picks them up.
type SpoolForwarder struct {
	Dir string
	Now func() time.Time
}

// Forward implements Forwarder.
func (f *SpoolForwarder) Forward(ctx context.Context, h Header, text string, operational bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !operational {
		return fmt.Errorf("transmit: forward %s: practice products are never disseminated", h.AFOSID)
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("transmit: forward %s: %w", h.AFOSID, err)
	}
	name := fmt.Sprintf("%s.%s.txt", h.AFOSID, now().UTC().Format("20060102150405"))
	tmp := filepath.Join(f.Dir, "."+name)
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("transmit: forward %s: %w", h.AFOSID, err)
	}
	// Rename so the spool reader never sees a partial file.
	if err := os.Rename(tmp, filepath.Join(f.Dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("transmit: forward %s: %w", h.AFOSID, err)
	}
	return nil
}
