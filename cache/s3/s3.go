// Package s3 is a cache.Cache backend storing tiles as objects in an S3
// bucket, for the "class"-style cache config alternative in spec.md
// section 6. Locking is a best-effort check-then-put of a marker object
// (not an atomic conditional put) rather than a true distributed lock,
// since S3 offers no native advisory lock primitive.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/tilegen/tilegen/cache"
	"github.com/tilegen/tilegen/tgerr"
)

// Cache is an S3-backed cache.Cache.
type Cache struct {
	Client    *s3.S3
	Bucket    string
	KeyPrefix string
}

// New builds a Cache against bucket in region.
func New(region, bucket, keyPrefix string) (*Cache, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("s3 cache: %w", err)
	}
	return &Cache{Client: s3.New(sess), Bucket: bucket, KeyPrefix: keyPrefix}, nil
}

func init() {
	cache.Register("s3", func(config map[string]interface{}) (cache.Cache, error) {
		bucket, _ := config["bucket"].(string)
		if bucket == "" {
			return nil, fmt.Errorf("s3 cache: %q is required", "bucket")
		}
		region, _ := config["region"].(string)
		prefix, _ := config["key_prefix"].(string)
		return New(region, bucket, prefix)
	})
}

func (c *Cache) objectKey(key cache.Key) string {
	return fmt.Sprintf("%s%s/%d/%d/%d.%s", c.KeyPrefix, key.Layer, key.Z, key.X, key.Y, key.Format)
}

func (c *Cache) lockKey(key cache.Key) string {
	return c.objectKey(key) + ".lock"
}

// Lock polls for the absence of a lock marker object and then writes
// one; there is a race between check and put, acceptable for this
// backend's best-effort locking contract.
func (c *Cache) Lock(ctx context.Context, key cache.Key) error {
	lk := c.lockKey(key)
	for {
		_, err := c.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(c.Bucket),
			Key:    aws.String(lk),
		})
		if err != nil {
			_, putErr := c.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
				Bucket: aws.String(c.Bucket),
				Key:    aws.String(lk),
				Body:   bytes.NewReader([]byte("1")),
			})
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

// Unlock deletes the lock marker object.
func (c *Cache) Unlock(key cache.Key) error {
	lk := c.lockKey(key)
	_, err := c.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(lk),
	})
	if err != nil {
		return tgerr.CacheIOError{Op: "unlock", Key: lk, Err: err}
	}
	return nil
}

// Read fetches the tile object, returning ok=false on a 404.
func (c *Cache) Read(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	out, err := c.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, tgerr.CacheIOError{Op: "read", Key: c.objectKey(key), Err: err}
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, tgerr.CacheIOError{Op: "read", Key: c.objectKey(key), Err: err}
	}
	return data, true, nil
}

// Save puts the tile object, replacing any prior value (S3 PUT is
// atomic at the object level).
func (c *Cache) Save(ctx context.Context, key cache.Key, data []byte) error {
	_, err := c.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(c.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return tgerr.CacheIOError{Op: "save", Key: c.objectKey(key), Err: err}
	}
	return nil
}

// Remove deletes the tile object.
func (c *Cache) Remove(ctx context.Context, key cache.Key) error {
	_, err := c.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		return tgerr.CacheIOError{Op: "remove", Key: c.objectKey(key), Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	type awsErr interface{ Code() string }
	if ae, ok := err.(awsErr); ok {
		return ae.Code() == s3.ErrCodeNoSuchKey || ae.Code() == "NotFound"
	}
	return false
}
