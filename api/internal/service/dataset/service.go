package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/reframedb/reframe/api/internal/dataset"
	"github.com/reframedb/reframe/api/internal/domain"
)

// activityTypes maps the assay datamode to its display label. Rows with any
// other datamode are dropped.
var activityTypes = map[string]string{
	"DECREASING":   "IC50",
	"INCREASING":   "EC50",
	"SUPER_ACTIVE": "SUPER ACTIVE",
}

const multiValueSeparator = "; "

// Service answers dataset lookups over an immutable store.
type Service struct {
	store *dataset.Store
}

// New constructs a Service.
func New(store *dataset.Store) Service {
	return Service{store: store}
}

// LookupAssay returns the assay records for qid in file order.
func (s Service) LookupAssay(qid string) []domain.AssayRecord {
	out := make([]domain.AssayRecord, 0)
	for _, row := range s.store.AssayRows(qid) {
		mode, _ := row.Value(dataset.ColDatamode)
		label, ok := activityTypes[mode]
		if !ok {
			continue
		}
		out = append(out, domain.AssayRecord{
			ActivityType: label,
			AC50:         roundedFloat(row, dataset.ColAC50),
			AssayTitle:   row.Ptr(dataset.ColAssayTitle),
			Smiles:       row.Ptr(dataset.ColSmiles),
			PubChemCID:   compoundID(row),
			Wikidata:     qid,
			CalibrID:     row.Ptr(dataset.ColCalibrID),
			InChIKey:     row.Ptr(dataset.ColInChIKey),
			Ref:          domain.RefCalibr,
		})
	}
	return out
}

// LookupDrugProfile returns one profile per primary row for the chemical key
// behind qid. Secondary annotations are appended to every profile; keys that
// only appear in secondary datasets yield nothing.
func (s Service) LookupDrugProfile(qid string) []domain.DrugProfile {
	out := make([]domain.DrugProfile, 0)
	ikey, ok := s.store.ChemicalKey(qid)
	if !ok {
		return out
	}
	integrity := s.store.IntegrityRows(ikey)
	informa := s.store.InformaRows(ikey)

	for _, row := range s.store.PrimaryRows(ikey) {
		profile := domain.NewDrugProfile()
		profile.DrugName = row.Ptr(dataset.ColDrugName)
		profile.SubSmiles = row.Ptr(dataset.ColSubSmiles)
		profile.Phase = appendEntries(profile.Phase, row, dataset.ColPhase, domain.RefGVK)
		profile.DrugROA = appendEntries(profile.DrugROA, row, dataset.ColDrugROA, domain.RefGVK)
		profile.Category = appendEntries(profile.Category, row, dataset.ColCategory, domain.RefGVK)
		profile.Mechanism = appendEntries(profile.Mechanism, row, dataset.ColMechanism, domain.RefGVK)
		profile.Synonyms = appendEntries(profile.Synonyms, row, dataset.ColSynonyms, domain.RefGVK)

		for _, ann := range integrity {
			profile.Phase = appendEntries(profile.Phase, ann, dataset.ColIntegrityStatus, domain.RefIntegrity)
			profile.Category = appendEntries(profile.Category, ann, dataset.ColIntegrityTherapy, domain.RefIntegrity)
			profile.Mechanism = appendEntries(profile.Mechanism, ann, dataset.ColIntegrityMechanism, domain.RefIntegrity)
		}
		for _, ann := range informa {
			profile.Phase = appendEntries(profile.Phase, ann, dataset.ColInformaStatus, domain.RefInforma)
			profile.Mechanism = appendEntries(profile.Mechanism, ann, dataset.ColInformaMechanism, domain.RefInforma)
		}
		out = append(out, profile)
	}
	return out
}

func appendEntries(dst []domain.LabeledEntry, row dataset.Row, column, ref string) []domain.LabeledEntry {
	value, ok := row.Value(column)
	if !ok {
		return dst
	}
	for _, label := range strings.Split(value, multiValueSeparator) {
		dst = append(dst, domain.LabeledEntry{Label: label, QID: "", Ref: ref})
	}
	return dst
}

func roundedFloat(row dataset.Row, column string) *float64 {
	value, ok := row.Value(column)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}
	rounded := roundTo(parsed, 10)
	return &rounded
}

// roundTo rounds the exact binary value of v to the given number of decimals,
// sending ties to even.
func roundTo(v float64, decimals int) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}

// compoundID renders integer-valued numeric ids without a fractional part.
func compoundID(row dataset.Row) *string {
	value, ok := row.Value(dataset.ColPubChemCID)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		rendered := strconv.FormatInt(int64(f), 10)
		return &rendered
	}
	return &value
}
