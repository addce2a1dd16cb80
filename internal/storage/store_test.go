package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"templatefiller/internal/storage"
)

func TestLocalStoreNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "out.zip", []byte("first")))
	err = store.Put(ctx, "out.zip", []byte("second"))
	require.ErrorIs(t, err, storage.ErrExists)

	rc, obj, err := store.Open(ctx, "out.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "first", string(data))
	require.EqualValues(t, 5, obj.Size)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")
}

func TestLocalStoreConcurrentPutsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put(ctx, "race.zip", []byte("x")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestLocalStoreMissingAndInvalidKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "downloads"))
	require.NoError(t, err)

	_, _, err = store.Open(ctx, "nope.zip")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, store.Delete(ctx, "nope.zip"))

	for _, key := range []string{"", "..", "../x.zip", "a/b.zip", ".hidden", strings.Repeat("a", 300)} {
		require.ErrorIs(t, store.Put(ctx, key, []byte("x")), storage.ErrInvalidKey, "key %q", key)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, exists := f.objects[key]; exists {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreConditionalPut(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store, err := storage.NewS3Store(fake, "bucket", "outputs")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "s1_letter.zip", []byte("zip-bytes")))
	require.ErrorIs(t, store.Put(ctx, "s1_letter.zip", []byte("other")), storage.ErrExists)

	require.Len(t, fake.puts, 2)
	require.Equal(t, "outputs/s1_letter.zip", aws.ToString(fake.puts[0].Key))
	require.Equal(t, "bucket", aws.ToString(fake.puts[0].Bucket))

	rc, obj, err := store.Open(ctx, "s1_letter.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "zip-bytes", string(data))
	require.EqualValues(t, len("zip-bytes"), obj.Size)

	_, _, err = store.Open(ctx, "absent.zip")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "s1_letter.zip"))
	_, _, err = store.Open(ctx, "s1_letter.zip")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestS3StoreWrapsOtherErrors(t *testing.T) {
	store, err := storage.NewS3Store(failingS3{newFakeS3()}, "bucket", "")
	require.NoError(t, err)
	err = store.Put(context.Background(), "a.zip", []byte("x"))
	require.Error(t, err)
	require.False(t, errors.Is(err, storage.ErrExists))
	require.Contains(t, err.Error(), "AccessDenied")
}

type failingS3 struct{ *fakeS3 }

func (failingS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := storage.NewS3Store(newFakeS3(), "", "")
	require.Error(t, err)
	_, err = storage.NewS3Store(nil, "bucket", "")
	require.Error(t, err)
}
