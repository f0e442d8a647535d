package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/lazyjson"
)

// Phases of a preserve relocation. In relocating the original is whole and
// the temp copy may be partial; in copied and restoring the temp copy is
// whole; in restored the subtree is back in place and the temp copy may be
// partial.
const (
	phaseRelocating = "relocating"
	phaseCopied     = "copied"
	phaseRestoring  = "restoring"
	phaseRestored   = "restored"
)

// preserveJournal records an in-flight relocation of the heavy subtree so a
// run that dies between the steps can be finished by the next one.
type preserveJournal struct {
	TargetDir string    `json:"target_dir"`
	HeavyDir  string    `json:"heavy_dir"`
	TempDir   string    `json:"temp_dir"`
	Phase     string    `json:"phase"`
	Started   time.Time `json:"started"`
}

func journalPath(targetDir string) string {
	return filepath.Join(filepath.Dir(targetDir), "."+filepath.Base(targetDir)+".preserve.json")
}

func preserveTempDir(targetDir, id string) string {
	return filepath.Join(filepath.Dir(targetDir), "."+filepath.Base(targetDir)+".preserve-"+id)
}

func openJournal(targetDir string) lazyjson.Manager[preserveJournal] {
	return lazyjson.New(journalPath(targetDir),
		lazyjson.WithFileMode[preserveJournal](0600),
		lazyjson.WithRemoveWhenEmpty(func(j *preserveJournal) bool { return j.TempDir == "" }),
	)
}

func setJournal(j lazyjson.Manager[preserveJournal], v preserveJournal) error {
	if err := j.Modify(func(cur *preserveJournal) error {
		*cur = v
		return nil
	}); err != nil {
		return err
	}
	if err := j.Save(); err != nil {
		return fmt.Errorf("failed to write relocation journal: %w", err)
	}
	return nil
}

func clearJournal(j lazyjson.Manager[preserveJournal]) error {
	return setJournal(j, preserveJournal{})
}

// recoverPreserved finishes a relocation left behind by a crashed uninstall.
// A subtree stranded in the temp location is moved back under targetDir.
func recoverPreserved(ctx context.Context, targetDir, heavyDir string) error {
	j := openJournal(targetDir)
	rec, err := j.Get()
	if err != nil {
		return fmt.Errorf("failed to read relocation journal: %w", err)
	}
	if rec.TempDir == "" {
		return nil
	}
	if rec.HeavyDir != "" {
		heavyDir = rec.HeavyDir
	}
	heavy := filepath.Join(targetDir, heavyDir)
	slog.Warn("Recovering interrupted uninstall", "temp", rec.TempDir, "target", heavy, "phase", rec.Phase)

	if !exists(rec.TempDir) {
		return clearJournal(j)
	}
	keepTarget := rec.Phase == phaseRestored || (rec.Phase == phaseRelocating && exists(heavy))
	if keepTarget {
		if err := disk.RemoveTree(rec.TempDir); err != nil {
			return err
		}
		return clearJournal(j)
	}
	if exists(heavy) {
		// A partial copy of the temp tree.
		if err := disk.RemoveTree(heavy); err != nil {
			return err
		}
	}
	return restorePreserved(ctx, j, *rec, heavy)
}

// preserveHeavy removes everything in targetDir except the heavy subtree.
// The subtree is moved next to targetDir, the rest is deleted, and the subtree
// is moved back into a fresh targetDir.
func preserveHeavy(ctx context.Context, targetDir, heavyDir, id string) error {
	heavy := filepath.Join(targetDir, heavyDir)
	tmp := preserveTempDir(targetDir, id)
	j := openJournal(targetDir)

	rec := preserveJournal{
		TargetDir: targetDir,
		HeavyDir:  heavyDir,
		TempDir:   tmp,
		Phase:     phaseRelocating,
		Started:   time.Now().UTC(),
	}
	if err := setJournal(j, rec); err != nil {
		return err
	}
	slog.Info("Relocating heavy dependency", "from", heavy, "to", tmp)
	err := disk.MoveNotify(ctx, heavy, tmp, func() error {
		rec.Phase = phaseCopied
		return setJournal(j, rec)
	})
	if err != nil {
		err = fmt.Errorf("failed to relocate %s: %w", heavy, err)
		if exists(tmp) {
			// The next run settles which copy survives.
			return err
		}
		return errors.Join(err, clearJournal(j))
	}

	rec.Phase = phaseRestoring
	if err := setJournal(j, rec); err != nil {
		return err
	}

	var errs []error
	if err := disk.RemoveTree(targetDir); err != nil {
		errs = append(errs, err)
	}
	if err := restorePreserved(ctx, j, rec, heavy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// restorePreserved moves the temp copy back to heavy and clears the journal.
// The journal stays when the move fails so the next run can retry.
func restorePreserved(ctx context.Context, j lazyjson.Manager[preserveJournal], rec preserveJournal, heavy string) error {
	if err := os.MkdirAll(filepath.Dir(heavy), 0755); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", filepath.Dir(heavy), err)
	}
	if rec.Phase != phaseRestoring {
		rec.Phase = phaseRestoring
		if err := setJournal(j, rec); err != nil {
			return err
		}
	}
	err := disk.MoveNotify(ctx, rec.TempDir, heavy, func() error {
		rec.Phase = phaseRestored
		return setJournal(j, rec)
	})
	if err != nil {
		return fmt.Errorf("failed to restore %s from %s: %w", heavy, rec.TempDir, err)
	}
	return clearJournal(j)
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
