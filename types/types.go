package types

import (
	"time"

	"github.com/google/uuid"
)

// ChunkSize and ChunkOverlap are fixed for every document; changing them
// between uploads makes one index hold chunks of different granularity.
const (
	ChunkSize    = 800
	ChunkOverlap = 100
	TopK         = 8
)

type Page struct {
	Number int
	Text   string
}

type Chunk struct {
	ID        uuid.UUID `json:"id"`
	DocID     uuid.UUID `json:"doc_id"`
	Index     int       `json:"index"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Score     float64   `json:"-"`
}

type Document struct {
	ID         uuid.UUID // Уникальный идентификатор документа
	Title      string
	Source     string // Имя загруженного файла
	SourcePath string // Путь в staging-директории
	Backend    string // Парсер, который извлёк текст
	Pages      int
	CreatedAt  time.Time
}

type Intent string

const (
	IntentListUMKM  Intent = "list_umkm"
	IntentRecommend Intent = "recommend"
	IntentQA        Intent = "qa"
)

type Recommendation struct {
	UMKM   string `json:"umkm" validate:"required"`
	Menu   string `json:"menu" validate:"required"`
	Reason string `json:"reason"`
}

type Answer struct {
	Intent          Intent           `json:"intent"`
	Answer          string           `json:"answer"`
	UMKMList        []string         `json:"umkm_list"`
	Recommendations []Recommendation `json:"recommendations"`
	Debug           *AnswerDebug     `json:"debug,omitempty"`
}

type AnswerDebug struct {
	NumDocsInIndex int `json:"num_docs_in_index"`
	DocsFound      int `json:"docs_found"`
}

// PlainAnswer is the degraded form used when model output is not a valid
// structured answer.
func PlainAnswer(text string) *Answer {
	return &Answer{
		Intent:          IntentQA,
		Answer:          text,
		UMKMList:        []string{},
		Recommendations: []Recommendation{},
	}
}

type IndexState string

const (
	IndexMissing IndexState = "missing"
	IndexEmpty   IndexState = "empty"
	IndexReady   IndexState = "ready"
)

type IndexStatus struct {
	Index            IndexState `json:"index"`
	Vectors          int        `json:"vectors"`
	PDFFilesUploaded int        `json:"pdf_files_uploaded"`
	Message          string     `json:"message"`
}

type UploadResult struct {
	Status      string `json:"status"`
	AddedChunks int    `json:"added_chunks"`
}
