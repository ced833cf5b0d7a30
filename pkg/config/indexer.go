package config

// IndexerConfig holds runtime configuration for the index sync job.
type IndexerConfig struct {
	Environment      string
	LogLevel         string
	ElasticsearchURL string
	SourceIndex      string
	DestIndex        string
	Query            string
	Field            string
	Size             int
	TotalFieldsLimit int
	Wikidata         WikidataConfig
}

// LoadIndexerConfig constructs an IndexerConfig from the config file and environment.
func LoadIndexerConfig() IndexerConfig {
	src := NewSource()
	return IndexerConfig{
		Environment:      src.GetString("APP_ENV", "development"),
		LogLevel:         src.GetString("LOG_LEVEL", "info"),
		ElasticsearchURL: src.GetString("ELASTICSEARCH_URL", "http://localhost:9200"),
		SourceIndex:      src.GetString("SOURCE_INDEX", "reframe"),
		DestIndex:        src.GetString("DEST_INDEX", "wikidata"),
		Query:            src.GetString("SYNC_QUERY", "Q*"),
		Field:            src.GetString("SYNC_FIELD", "qid"),
		Size:             src.GetInt("SYNC_SIZE", 10000),
		TotalFieldsLimit: src.GetInt("DEST_TOTAL_FIELDS_LIMIT", 10000),
		Wikidata:         loadWikidata(src),
	}
}
