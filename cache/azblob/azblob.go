// Package azblob is a cache.Cache backend storing tiles as blobs in an
// Azure Storage container, for the "class"-style cache config
// alternative in spec.md section 6. Like the s3 backend, locking is a
// best-effort existence-check-then-upload since blob storage has no
// native advisory lock primitive.
package azblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/tilegen/tilegen/cache"
	"github.com/tilegen/tilegen/tgerr"
)

// Cache is an Azure Blob Storage-backed cache.Cache.
type Cache struct {
	Container azblob.ContainerURL
	KeyPrefix string
}

// New builds a Cache against containerURL using accountName/accountKey
// shared-key credentials.
func New(accountName, accountKey, containerName, keyPrefix string) (*Cache, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azblob cache: %w", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, containerName))
	if err != nil {
		return nil, fmt.Errorf("azblob cache: %w", err)
	}
	return &Cache{Container: azblob.NewContainerURL(*u, pipeline), KeyPrefix: keyPrefix}, nil
}

func init() {
	cache.Register("azblob", func(config map[string]interface{}) (cache.Cache, error) {
		account, _ := config["account"].(string)
		key, _ := config["key"].(string)
		container, _ := config["container"].(string)
		prefix, _ := config["key_prefix"].(string)
		if account == "" || container == "" {
			return nil, fmt.Errorf("azblob cache: %q and %q are required", "account", "container")
		}
		return New(account, key, container, prefix)
	})
}

func (c *Cache) blobName(key cache.Key) string {
	return fmt.Sprintf("%s%s/%d/%d/%d.%s", c.KeyPrefix, key.Layer, key.Z, key.X, key.Y, key.Format)
}

func (c *Cache) lockName(key cache.Key) string {
	return c.blobName(key) + ".lock"
}

// Lock polls for the absence of a lock marker blob and then uploads
// one.
func (c *Cache) Lock(ctx context.Context, key cache.Key) error {
	lk := c.lockName(key)
	blob := c.Container.NewBlockBlobURL(lk)
	for {
		_, err := blob.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			_, putErr := blob.Upload(ctx, bytes.NewReader([]byte("1")), azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{})
			if putErr != nil {
				return tgerr.CacheIOError{Op: "lock", Key: lk, Err: putErr}
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Unlock deletes the lock marker blob.
func (c *Cache) Unlock(key cache.Key) error {
	lk := c.lockName(key)
	blob := c.Container.NewBlockBlobURL(lk)
	_, err := blob.Delete(context.Background(), azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		return tgerr.CacheIOError{Op: "unlock", Key: lk, Err: err}
	}
	return nil
}

// Read downloads the tile blob, returning ok=false if it does not
// exist.
func (c *Cache) Read(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	blob := c.Container.NewBlockBlobURL(c.blobName(key))
	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, tgerr.CacheIOError{Op: "read", Key: c.blobName(key), Err: err}
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, tgerr.CacheIOError{Op: "read", Key: c.blobName(key), Err: err}
	}
	return data, true, nil
}

// Save uploads the tile blob, replacing any prior value.
func (c *Cache) Save(ctx context.Context, key cache.Key, data []byte) error {
	blob := c.Container.NewBlockBlobURL(c.blobName(key))
	_, err := blob.Upload(ctx, bytes.NewReader(data), azblob.BlobHTTPHeaders{}, azblob.Metadata{}, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return tgerr.CacheIOError{Op: "save", Key: c.blobName(key), Err: err}
	}
	return nil
}

// Remove deletes the tile blob.
func (c *Cache) Remove(ctx context.Context, key cache.Key) error {
	blob := c.Container.NewBlockBlobURL(c.blobName(key))
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil && !isNotFound(err) {
		return tgerr.CacheIOError{Op: "remove", Key: c.blobName(key), Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	if se, ok := err.(azblob.StorageError); ok {
		return se.ServiceCode() == azblob.ServiceCodeBlobNotFound
	}
	return false
}
