package service

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
	"github.com/BumpyClock/tasque/internal/validation"
)

func fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SpecAttachInput carries the raw bytes of a spec to attach. The engine
// never reads stdin or a filesystem path itself; callers resolve the
// source (file, inline string, piped stdin) before calling AttachSpec.
type SpecAttachInput struct {
	Bytes []byte
	Force bool
}

// AttachSpec writes the bytes to .tasque/specs/<id>/spec.md atomically,
// hashes them, and emits task.spec_attached (spec §4.6 "spec_attach").
// If a spec is already attached with a different fingerprint, this fails
// with SPEC_CONFLICT unless Force is set.
func (s *Service) AttachSpec(taskID string, in SpecAttachInput) (*domain.Task, error) {
	fp := fingerprint(in.Bytes)

	next, _, err := s.mutate(func(ld loaded) ([]domain.Event, error) {
		t, ok := ld.state.Tasks[taskID]
		if !ok {
			return nil, tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", taskID)
		}
		if t.SpecFingerprint != "" && t.SpecFingerprint != fp && !in.Force {
			return nil, tasqerr.New(tasqerr.CodeSpecConflict,
				"task %s already has an attached spec with a different fingerprint; pass force to overwrite", taskID)
		}

		if err := paths.AtomicWrite(s.Layout.SpecFile(taskID), in.Bytes); err != nil {
			return nil, tasqerr.Wrap(tasqerr.CodeIOError, err, "write spec for %s", taskID)
		}

		eventID, err := s.newEventID()
		if err != nil {
			return nil, err
		}
		return []domain.Event{domain.NewEvent(eventID, s.now(), s.Actor, domain.EventTaskSpecAttached, taskID, map[string]any{
			"spec_path":        s.Layout.SpecFile(taskID),
			"spec_fingerprint": fp,
		})}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[taskID], nil
}

// SpecCheckReport is the read-only result of spec_check.
type SpecCheckReport struct {
	Attached         bool
	FingerprintDrift bool
	MissingSections  []string
}

// CheckSpec rehashes the attached spec file on disk and compares it
// against the fingerprint recorded at attach time, then verifies the
// required sections are present (spec §4.6 "spec_check", read-only — no
// lock taken).
func (s *Service) CheckSpec(taskID string) (SpecCheckReport, error) {
	t, err := s.Get(taskID)
	if err != nil {
		return SpecCheckReport{}, err
	}
	if t.SpecFingerprint == "" {
		return SpecCheckReport{}, tasqerr.New(tasqerr.CodeSpecNotAttached, "task %s has no attached spec", taskID)
	}

	raw, err := readSpecFile(s.Layout, taskID)
	if err != nil {
		return SpecCheckReport{}, err
	}

	return SpecCheckReport{
		Attached:         true,
		FingerprintDrift: fingerprint(raw) != t.SpecFingerprint,
		MissingSections:  validation.CheckSections(raw),
	}, nil
}

// checkAttachedSpec is the shared guard Claim uses when a caller requires
// a valid attached spec before work can start (spec §4.6 "claim").
func checkAttachedSpec(l paths.Layout, t *domain.Task) error {
	if t.SpecFingerprint == "" {
		return tasqerr.New(tasqerr.CodeSpecNotAttached, "task %s has no attached spec", t.ID)
	}
	raw, err := readSpecFile(l, t.ID)
	if err != nil {
		return err
	}
	if fingerprint(raw) != t.SpecFingerprint {
		return tasqerr.New(tasqerr.CodeSpecFingerprintDrift, "attached spec for %s has drifted from its recorded fingerprint", t.ID)
	}
	if missing := validation.CheckSections(raw); len(missing) > 0 {
		return tasqerr.New(tasqerr.CodeSpecRequiredSectionsGone, "attached spec for %s is missing required sections: %s", t.ID, strings.Join(missing, ", "))
	}
	return nil
}

func readSpecFile(l paths.Layout, taskID string) ([]byte, error) {
	raw, err := os.ReadFile(l.SpecFile(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tasqerr.New(tasqerr.CodeSpecFileMissing, "spec file for %s is missing on disk", taskID)
		}
		return nil, tasqerr.Wrap(tasqerr.CodeIOError, err, "read spec for %s", taskID)
	}
	return raw, nil
}
