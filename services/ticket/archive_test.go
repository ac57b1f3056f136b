package ticket

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	bucket, name, contentType string
	body                      []byte
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.name, f.contentType, f.body = bucket, name, opts.ContentType, body
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

type savedTranscripts struct {
	mu    sync.Mutex
	saved map[string]int
}

func (s *savedTranscripts) Save(_ context.Context, t Ticket, msgs []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[t.ChannelID] = len(msgs)
	return ObjectName(t), nil
}

func (s *savedTranscripts) count(channelID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.saved[channelID]
	return n, ok
}

func TestArchiveSaveWritesJSON(t *testing.T) {
	objects := &fakeObjects{}
	archive := NewArchive(objects, "transcripts")
	tk := Ticket{
		ChannelID: "c42",
		MemberID:  "vip",
		Status:    StatusClosed,
		ClosedBy:  "staff",
		CreatedAt: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}

	name, err := archive.Save(context.Background(), tk, []Message{{ChannelID: "c42", Content: "hi", SenderType: SenderUser}})
	require.NoError(t, err)
	require.Equal(t, "transcripts/2026/03/c42.json", name)
	require.Equal(t, "transcripts", objects.bucket)
	require.Equal(t, "application/json", objects.contentType)

	var got Transcript
	require.NoError(t, json.Unmarshal(objects.body, &got))
	require.Equal(t, "c42", got.Ticket.ChannelID)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "hi", got.Messages[0].Content)
	require.False(t, got.ArchivedAt.IsZero())
}

func TestCloseArchivesTranscript(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	archived := &savedTranscripts{saved: map[string]int{}}
	f.svc.SetArchiver(archived)

	res, err := f.svc.Open(ctx, OpenRequest{MemberID: "reg"})
	require.NoError(t, err)
	ch := res.Ticket.ChannelID
	_, err = f.svc.Record(ctx, ch, "reg", "regular", "where is my key")
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, ch, "staff")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, ok := archived.count(ch)
		return ok && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
