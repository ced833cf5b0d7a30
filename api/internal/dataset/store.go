package dataset

import (
	"context"
	"fmt"

	"github.com/reframedb/reframe/pkg/config"
)

// Column names read from each dataset.
const (
	ColWikidata   = "wikidata"
	ColDatamode   = "datamode"
	ColAC50       = "ac50"
	ColAssayTitle = "assay_title"
	ColSmiles     = "smiles"
	ColPubChemCID = "PubChem CID"
	ColCalibrID   = "calibr_id"
	ColInChIKey   = "inchi_key"

	ColIKey      = "ikey"
	ColDrugName  = "drug_name"
	ColPhase     = "phase"
	ColDrugROA   = "drug_roa"
	ColCategory  = "category"
	ColMechanism = "mechanism"
	ColSynonyms  = "synonyms"
	ColSubSmiles = "sub_smiles"

	ColIntegrityStatus    = "status"
	ColIntegrityTherapy   = "int_thera_group"
	ColIntegrityMechanism = "int_MoA"

	ColInformaStatus    = "Global Status"
	ColInformaMechanism = "Mechanism Of Action"
)

// Store is the read-only dataset handle. It is built once and never mutated,
// so it is safe for concurrent use.
type Store struct {
	assay     *Table
	gvk       *Table
	integrity *Table
	informa   *Table

	assayByQID       map[string][]int
	gvkByKey         map[string][]int
	integrityByKey   map[string][]int
	informaByKey     map[string][]int
	chemicalKeyByQID map[string]string
}

// Tables bundles the parsed datasets for NewStore.
type Tables struct {
	Assay     *Table
	GVK       *Table
	Integrity *Table
	Informa   *Table
}

// NewStore indexes the tables and the identifier map.
func NewStore(tables Tables, reverse map[string]string) *Store {
	s := &Store{
		assay:            orEmpty(tables.Assay),
		gvk:              orEmpty(tables.GVK),
		integrity:        orEmpty(tables.Integrity),
		informa:          orEmpty(tables.Informa),
		chemicalKeyByQID: make(map[string]string, len(reverse)),
	}
	for qid, ikey := range reverse {
		s.chemicalKeyByQID[qid] = ikey
	}
	s.assayByQID = s.assay.IndexBy(ColWikidata)
	s.gvkByKey = s.gvk.IndexBy(ColIKey)
	s.integrityByKey = s.integrity.IndexBy(ColIKey)
	s.informaByKey = s.informa.IndexBy(ColIKey)
	return s
}

// Load reads every dataset from src and resolves the identifier map.
func Load(ctx context.Context, src Source, data config.DataConfig, resolver IDMapResolver) (*Store, error) {
	assay, err := readFile(ctx, src, data.AssayFile,
		ColWikidata, ColDatamode, ColAC50, ColAssayTitle, ColSmiles, ColPubChemCID, ColCalibrID, ColInChIKey)
	if err != nil {
		return nil, err
	}
	gvk, err := readFile(ctx, src, data.GVKFile,
		ColIKey, ColDrugName, ColPhase, ColDrugROA, ColCategory, ColMechanism, ColSynonyms, ColSubSmiles)
	if err != nil {
		return nil, err
	}
	integrity, err := readFile(ctx, src, data.IntegrityFile,
		ColIKey, ColIntegrityStatus, ColIntegrityTherapy, ColIntegrityMechanism)
	if err != nil {
		return nil, err
	}
	informa, err := readFile(ctx, src, data.InformaFile,
		ColIKey, ColInformaStatus, ColInformaMechanism)
	if err != nil {
		return nil, err
	}
	reverse, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(Tables{Assay: assay, GVK: gvk, Integrity: integrity, Informa: informa}, reverse), nil
}

func readFile(ctx context.Context, src Source, name string, required ...string) (*Table, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer rc.Close()
	table, err := ReadTable(rc, required...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return table, nil
}

// AssayRows returns the assay rows for an identifier in file order.
func (s *Store) AssayRows(qid string) []Row {
	return rows(s.assay, s.assayByQID[qid])
}

// ChemicalKey resolves an identifier to its chemical key.
func (s *Store) ChemicalKey(qid string) (string, bool) {
	ikey, ok := s.chemicalKeyByQID[qid]
	return ikey, ok
}

// PrimaryRows returns the GVK rows for a chemical key.
func (s *Store) PrimaryRows(ikey string) []Row {
	return rows(s.gvk, s.gvkByKey[ikey])
}

// IntegrityRows returns the Integrity rows for a chemical key.
func (s *Store) IntegrityRows(ikey string) []Row {
	return rows(s.integrity, s.integrityByKey[ikey])
}

// InformaRows returns the Informa rows for a chemical key.
func (s *Store) InformaRows(ikey string) []Row {
	return rows(s.informa, s.informaByKey[ikey])
}

// Stats reports row counts, logged at startup.
func (s *Store) Stats() map[string]int {
	return map[string]int{
		"assay":     s.assay.Len(),
		"gvk":       s.gvk.Len(),
		"integrity": s.integrity.Len(),
		"informa":   s.informa.Len(),
		"id_map":    len(s.chemicalKeyByQID),
	}
}

func rows(t *Table, positions []int) []Row {
	out := make([]Row, 0, len(positions))
	for _, i := range positions {
		out = append(out, t.Row(i))
	}
	return out
}

func orEmpty(t *Table) *Table {
	if t == nil {
		return &Table{columns: map[string]int{}}
	}
	return t
}
