package domain

// Reference tags naming the dataset a value came from.
const (
	RefCalibr    = "Calibr"
	RefGVK       = "GVK"
	RefIntegrity = "Integrity"
	RefInforma   = "Informa"
)

// AssayRecord is one assay measurement for a compound.
type AssayRecord struct {
	ActivityType string   `json:"activity_type"`
	AC50         *float64 `json:"ac50"`
	AssayTitle   *string  `json:"assay_title"`
	Smiles       *string  `json:"smiles"`
	PubChemCID   *string  `json:"PubChem CID"`
	Wikidata     string   `json:"wikidata"`
	CalibrID     *string  `json:"calibr_id"`
	InChIKey     *string  `json:"inchi_key"`
	Ref          string   `json:"ref"`
}

// LabeledEntry is a single value of a multi-valued drug attribute.
type LabeledEntry struct {
	Label string `json:"label"`
	QID   string `json:"qid"`
	Ref   string `json:"ref"`
}

// DrugProfile aggregates drug annotations keyed by a chemical key.
type DrugProfile struct {
	DrugName  *string        `json:"drug_name"`
	Phase     []LabeledEntry `json:"phase"`
	DrugROA   []LabeledEntry `json:"drug_roa"`
	Category  []LabeledEntry `json:"category"`
	Mechanism []LabeledEntry `json:"mechanism"`
	Synonyms  []LabeledEntry `json:"synonyms"`
	SubSmiles *string        `json:"sub_smiles"`
}

// NewDrugProfile returns a profile whose list fields encode as empty arrays.
func NewDrugProfile() DrugProfile {
	return DrugProfile{
		Phase:     []LabeledEntry{},
		DrugROA:   []LabeledEntry{},
		Category:  []LabeledEntry{},
		Mechanism: []LabeledEntry{},
		Synonyms:  []LabeledEntry{},
	}
}
