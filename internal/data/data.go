package data

import (
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
)

// Options selects the output locations and optional mirrors
type Options struct {
	DBFile     string
	MessageDir string
	CSVFile    string

	Uploader  ObjectUploader // nil disables the transcript mirror
	Publisher Publisher      // nil disables record publishing
}

// Repositories contains all repositories
type Repositories struct {
	Chats       repo.ChatRepo
	Transcripts repo.TranscriptSink
	Records     []repo.RecordSink
}

// NewRepositories creates all repositories
func NewRepositories(opts Options) (*Repositories, error) {
	chats, err := NewChatStore(opts.DBFile)
	if err != nil {
		return nil, err
	}

	files, err := NewFileTranscriptSink(opts.MessageDir)
	if err != nil {
		chats.Close()
		return nil, err
	}

	var mirrors []repo.TranscriptSink
	if opts.Uploader != nil {
		mirrors = append(mirrors, NewS3TranscriptSink(opts.Uploader))
	}

	records := []repo.RecordSink{NewCSVRecordSink(opts.CSVFile)}
	if opts.Publisher != nil {
		records = append(records, NewQueueRecordSink(opts.Publisher))
	}

	return &Repositories{
		Chats:       chats,
		Transcripts: NewTeeTranscriptSink(files, mirrors...),
		Records:     records,
	}, nil
}

// Close releases the store
func (r *Repositories) Close() error {
	return r.Chats.Close()
}
