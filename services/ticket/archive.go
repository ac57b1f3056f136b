package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectStore is the part of the minio client the archive writes through.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Transcript is the archived form of a closed ticket.
type Transcript struct {
	Ticket     Ticket    `json:"ticket"`
	Messages   []Message `json:"messages"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive stores closed ticket transcripts as JSON objects.
type Archive struct {
	objects ObjectStore
	bucket  string
}

func NewArchive(objects ObjectStore, bucket string) *Archive {
	return &Archive{objects: objects, bucket: bucket}
}

// ObjectName groups transcripts by the month the ticket was opened.
func ObjectName(t Ticket) string {
	return fmt.Sprintf("transcripts/%s/%s.json", t.CreatedAt.UTC().Format("2006/01"), t.ChannelID)
}

func (a *Archive) Save(ctx context.Context, t Ticket, msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	body, err := json.Marshal(Transcript{Ticket: t, Messages: msgs, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	name := ObjectName(t)
	if _, err := a.objects.PutObject(ctx, a.bucket, name, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"member-id": t.MemberID,
			"closed-by": t.ClosedBy,
		},
	}); err != nil {
		return "", err
	}
	return name, nil
}
