package facts

// EvidenceKind names a category of uploaded supporting evidence.
type EvidenceKind string

const (
	EvidenceTenancyAgreement  EvidenceKind = "tenancy_agreement"
	EvidenceBankStatements    EvidenceKind = "bank_statements"
	EvidenceGasSafety         EvidenceKind = "gas_safety"
	EvidenceEPC               EvidenceKind = "epc"
	EvidenceDepositProtection EvidenceKind = "deposit_protection"
	EvidenceRentSchedule      EvidenceKind = "rent_schedule"
	EvidencePhotos            EvidenceKind = "photos"
	EvidenceHowToRent         EvidenceKind = "how_to_rent"
	EvidenceOther             EvidenceKind = "other"
)

// EvidenceKinds is every kind with a flag, in a stable order.
var EvidenceKinds = []EvidenceKind{
	EvidenceTenancyAgreement,
	EvidenceBankStatements,
	EvidenceGasSafety,
	EvidenceEPC,
	EvidenceDepositProtection,
	EvidenceRentSchedule,
	EvidencePhotos,
	EvidenceHowToRent,
	EvidenceOther,
}

func (k EvidenceKind) FlagKey() string  { return "evidence." + string(k) + "_uploaded" }
func (k EvidenceKind) FilesKey() string { return "evidence." + string(k) + "_file_ids" }

// Valid reports whether k is a known kind.
func (k EvidenceKind) Valid() bool {
	for _, known := range EvidenceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// SyncEvidenceFlags rewrites every evidence flag and file-id list from the
// records grouped by kind, so a flag is true exactly when its kind has files.
func (m *Mapper) SyncEvidenceFlags(store *Store, fileIDsByKind map[EvidenceKind][]string) *Store {
	out := store
	for _, kind := range EvidenceKinds {
		ids := fileIDsByKind[kind]
		out, _ = m.ApplyValue(out, kind.FlagKey(), Bool(len(ids) > 0))
		out, _ = m.ApplyValue(out, kind.FilesKey(), Strings(ids...))
	}
	return out
}

// EvidenceFlags reads the flag of every kind.
func EvidenceFlags(store *Store) map[EvidenceKind]bool {
	out := make(map[EvidenceKind]bool, len(EvidenceKinds))
	for _, kind := range EvidenceKinds {
		v, _ := store.Truth(kind.FlagKey())
		out[kind] = v
	}
	return out
}
