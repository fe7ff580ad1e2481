package state

import (
	"github.com/openvault-labs/pcv/internal/types"
)

// Recorder adapts the package-level store functions to the vault's audit
// sink interface. Parameter versions are written under a fixed config name.
type Recorder struct {
	ConfigName string
}

// NewRecorder creates a recorder writing parameters under configName.
func NewRecorder(configName string) *Recorder {
	if configName == "" {
		configName = "default"
	}
	return &Recorder{ConfigName: configName}
}

// SaveReceipt persists one operation receipt.
func (r *Recorder) SaveReceipt(receipt types.OperationReceipt) error {
	return SaveOperationReceipt(receipt)
}

// SaveSnapshot persists one vault snapshot.
func (r *Recorder) SaveSnapshot(snapshot types.VaultSnapshot) error {
	_, err := SaveVaultSnapshot(snapshot)
	return err
}

// SaveParameters persists the parameter set as the next active version.
func (r *Recorder) SaveParameters(params types.VaultParameters) error {
	version, err := NextParameterVersion(r.ConfigName)
	if err != nil {
		return err
	}
	_, err = SaveVaultParameters(params, r.ConfigName, version, true)
	return err
}

// NextOperationSeq advances and returns the global operation sequence.
func (r *Recorder) NextOperationSeq() (int, error) {
	return IncrementOperationSeq()
}
