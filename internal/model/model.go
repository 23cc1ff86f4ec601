// Package model defines the persisted and in-flight entities of the Book
// Processing Orchestrator: books, chapters, descriptions, generated images,
// and the scheduler-internal job/slot/cooldown records.
package model

import "time"

// BookFormat is the uploaded book's source format.
type BookFormat string

const (
	FormatEPUB BookFormat = "epub"
	FormatFB2  BookFormat = "fb2"
)

// Genre enumerates the nine supported book genres (§6 check constraint).
type Genre string

const (
	GenreFantasy      Genre = "fantasy"
	GenreScienceFiction Genre = "science_fiction"
	GenreMystery      Genre = "mystery"
	GenreRomance      Genre = "romance"
	GenreHorror       Genre = "horror"
	GenreThriller     Genre = "thriller"
	GenreHistorical   Genre = "historical"
	GenreNonFiction   Genre = "non_fiction"
	GenreOther        Genre = "other"
)

// Book is the top-level uploaded work.
type Book struct {
	ID            string
	OwnerID       string
	Title         string
	Format        BookFormat
	Genre         Genre
	RawFileHandle string // opaque storage reference to the uploaded bytes
	IsParsed      bool
	IsProcessing  bool
	CoverBlobRef  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chapter is one chapter of a Book, as emitted by the format parser.
type Chapter struct {
	ID                    string
	BookID                string
	ChapterNumber         int // unique within book
	Title                 string
	Content               string
	WordCount             int
	IsDescriptionParsed   bool
	DescriptionsFound     int
	IsServicePage         bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DescriptionType is the unified entity type a RawDescription is mapped to.
type DescriptionType string

const (
	TypeLocation   DescriptionType = "LOCATION"
	TypeCharacter  DescriptionType = "CHARACTER"
	TypeAtmosphere DescriptionType = "ATMOSPHERE"
	TypeObject     DescriptionType = "OBJECT"
	TypeAction     DescriptionType = "ACTION"

	// TypeOther is the catch-all for a native processor label that maps
	// to no known type and whose content doesn't match the keyword
	// inference lexicon either (spec.md §4.4 "unknown labels fall back
	// to keyword-based inference (OTHER last)").
	TypeOther DescriptionType = "OTHER"
)

// Description is one extracted, scored, persisted text span.
type Description struct {
	ID                       string
	ChapterID                string
	Type                     DescriptionType
	Content                  string
	Context                  string
	ConfidenceScore          float64 // [0,1]
	PriorityScore            float64 // [0,1]
	PositionInChapter        int
	WordCount                int
	IsSuitableForGeneration  bool
	ImageGenerated           bool
	CreatedAt                time.Time
}

// ImageService enumerates the five supported image-generation providers.
type ImageService string

const (
	ServicePollinations    ImageService = "pollinations"
	ServiceOpenAIDalle     ImageService = "openai_dalle"
	ServiceMidjourney      ImageService = "midjourney"
	ServiceStableDiffusion ImageService = "stable_diffusion"
	ServiceImagen          ImageService = "imagen"
)

// ImageStatus is the monotonic (except failed→pending on retry) lifecycle
// of a GeneratedImage.
type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageGenerating ImageStatus = "generating"
	ImageCompleted  ImageStatus = "completed"
	ImageFailed     ImageStatus = "failed"
	ImageModerated  ImageStatus = "moderated"
)

// GeneratedImage is created when a Description clears the priority
// threshold. At least one of DescriptionID/ChapterID must be non-empty.
type GeneratedImage struct {
	ID            string
	OwnerID       string
	DescriptionID string
	ChapterID     string
	ServiceUsed   ImageService
	Status        ImageStatus
	URL           string
	Prompt        string
	RequestedAt   time.Time
	CompletedAt   time.Time
}

// ReadingProgress is external to the core; referenced read-only.
type ReadingProgress struct {
	UserID         string
	BookID         string
	CurrentChapter int
	CurrentPage    int
	PositionPct    float64
	CFI            string
	ScrollPct      float64
	LastReadAt     time.Time
}

// JobState is the lifecycle state of a ParsingJob.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// ParsingJob is the scheduler-internal unit of work: one admitted book
// parse, persisted so it survives process restart.
type ParsingJob struct {
	ID         string
	BookID     string
	UserID     string
	State      JobState
	Priority   int // 1=high .. 10=low
	Attempts   int
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	LastError  string
}

// JobSlot is held exclusively by (BookID, UserID) while a job runs; lives
// only in the coordination store, never persisted to the database.
type JobSlot struct {
	SlotID       string
	WorkerID     string
	JobID        string
	AcquiredAt   time.Time
	SoftDeadline time.Time
	HardDeadline time.Time
}

// CooldownMark prevents immediate re-processing of the same book;
// installed on slot acquisition, consulted by admission.
type CooldownMark struct {
	BookID    string
	ExpiresAt time.Time
}
