package vault

import (
	"github.com/rs/zerolog"

	"github.com/openvault-labs/pcv/internal/types"
)

// journal collects undo steps while an operation mutates state, so a failure
// after the first mutation can unwind every effect before the error
// surfaces. Undo steps run in reverse order. A journal is created, used, and
// discarded within a single operation under the vault's writer lock.
type journal struct {
	logger zerolog.Logger
	undos  []func() error
}

func newJournal(logger zerolog.Logger) *journal {
	return &journal{logger: logger}
}

// add records an undo step for a mutation that just happened.
func (j *journal) add(undo func() error) {
	j.undos = append(j.undos, undo)
}

// restoreAccount records an undo step that puts a holder account back to the
// exact field values it had before the operation touched it.
func (j *journal) restoreAccount(acc *types.HolderAccount) {
	saved := *acc
	j.add(func() error {
		*acc = saved
		return nil
	})
}

// rollback unwinds all recorded steps in reverse order. An undo step that
// itself fails is logged and skipped; the remaining steps still run.
func (j *journal) rollback() {
	for i := len(j.undos) - 1; i >= 0; i-- {
		if err := j.undos[i](); err != nil {
			j.logger.Error().Err(err).Int("step", i).Msg("Rollback step failed")
		}
	}
	j.undos = nil
}
