package domain

import "time"

// ActSource describes one corpus file and the act it holds.
type ActSource struct {
	Act        string     `json:"act"`
	ActAbbrev  Act        `json:"act_abbrev"`
	FileName   string     `json:"file_name"`
	SourceType SourceType `json:"source_type"`
}

// ActSources lists the corpus in a fixed order, constitution first.
func ActSources() []ActSource {
	return []ActSource{
		{Act: "Constitution of India", ActAbbrev: ActCOI, FileName: "constitution_of_india.json", SourceType: SourceArticle},
		{Act: "Indian Penal Code, 1860", ActAbbrev: ActIPC, FileName: "ipc.json", SourceType: SourceSection},
		{Act: "Code of Criminal Procedure, 1973", ActAbbrev: ActCrPC, FileName: "crpc.json", SourceType: SourceSection},
		{Act: "Civil Procedure Code, 1908", ActAbbrev: ActCPC, FileName: "cpc.json", SourceType: SourceSection},
		{Act: "Hindu Marriage Act, 1955", ActAbbrev: ActHMA, FileName: "hma.json", SourceType: SourceSection},
		{Act: "Indian Divorce Act, 1869", ActAbbrev: ActIDA, FileName: "ida.json", SourceType: SourceSection},
		{Act: "Indian Evidence Act, 1872", ActAbbrev: ActIEA, FileName: "iea.json", SourceType: SourceSection},
		{Act: "Negotiable Instruments Act, 1881", ActAbbrev: ActNIA, FileName: "nia.json", SourceType: SourceSection},
		{Act: "Motor Vehicles Act, 1988", ActAbbrev: ActMVA, FileName: "MVA.json", SourceType: SourceSection},
	}
}

// LookupActSource finds the corpus entry for an abbreviation.
func LookupActSource(act Act) (ActSource, bool) {
	for _, src := range ActSources() {
		if src.ActAbbrev == act {
			return src, true
		}
	}
	return ActSource{}, false
}

type IngestStatus string

const (
	IngestUploaded   IngestStatus = "uploaded"
	IngestProcessing IngestStatus = "processing"
	IngestReady      IngestStatus = "ready"
	IngestFailed     IngestStatus = "failed"
)

// IngestRun tracks loading one act file into the index.
type IngestRun struct {
	ID          string       `json:"id"`
	ActAbbrev   Act          `json:"act_abbrev"`
	Filename    string       `json:"filename"`
	StoragePath string       `json:"storage_path"`
	Status      IngestStatus `json:"status"`
	DocsIndexed int          `json:"docs_indexed"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TraceDoc is the logged view of one retrieved provision.
type TraceDoc struct {
	Citation  string `json:"citation"`
	Retriever string `json:"retriever"`
	Snippet   string `json:"snippet"`
}

// QueryTrace records one pass through the answer chain.
type QueryTrace struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Act        Act           `json:"act"`
	SubQueries []string      `json:"sub_queries"`
	Retrieved  []TraceDoc    `json:"retrieved"`
	Answer     string        `json:"answer"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}
