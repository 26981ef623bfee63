// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package backends

import (
	"bytes"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	s3go "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const URLPrefixS3 = "s3://"

type ObjectBackendS3 struct {
	session session.Session
}

func NewS3WithOptions(opts *Options) *ObjectBackendS3 {
	// Create the new configuration for the client
	conf := &aws.Config{
		Region: aws.String(os.Getenv("AWS_DEFAULT_REGION")),
	}

	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		logrus.Debug("No AWS credentials found in the environment, using anonymous client")
		conf.Credentials = credentials.AnonymousCredentials
	}
	sess := session.Must(session.NewSession(conf))
	return &ObjectBackendS3{
		session: *sess,
	}
}

func (s3 *ObjectBackendS3) Prefixes() []string {
	return []string{URLPrefixS3}
}

func (s3 *ObjectBackendS3) URLPrefix() string {
	return URLPrefixS3
}

func splitBucketPath(locationURL string) (bucket, path string, err error) {
	u, err := url.Parse(locationURL)
	if err != nil {
		return bucket, path, errors.Wrap(err, "parsing object URL")
	}
	if u.Host == "" {
		return bucket, path, errors.Errorf("object URL %s has no bucket", locationURL)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "NotFound", s3go.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}

// PathExists checks if an object exists in the bucket
func (s3 *ObjectBackendS3) PathExists(nodeURL string) (bool, error) {
	bucket, path, err := splitBucketPath(nodeURL)
	if err != nil {
		return false, errors.Wrap(err, "parsing node URL")
	}
	client := s3go.New(&s3.session)
	logrus.Debugf("Checking if %s exists in %s", path, bucket)
	if _, err := client.HeadObject(&s3go.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s3 *ObjectBackendS3) ReadObject(objectURL string) ([]byte, error) {
	bucket, path, err := splitBucketPath(objectURL)
	if err != nil {
		return nil, err
	}
	downloader := s3manager.NewDownloader(&s3.session)
	buf := aws.NewWriteAtBuffer([]byte{})
	n, err := downloader.Download(buf, &s3go.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, errors.Wrapf(err, "failed to download %s from %s", path, bucket)
	}
	logrus.Debugf("Downloaded %d bytes from %s", n, objectURL)
	return buf.Bytes(), nil
}

func (s3 *ObjectBackendS3) WriteObject(objectURL string, data []byte) error {
	bucket, path, err := splitBucketPath(objectURL)
	if err != nil {
		return err
	}
	uploader := s3manager.NewUploader(&s3.session)
	_, err = uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrap(err, "uploading object")
}

func (s3 *ObjectBackendS3) DeleteObject(objectURL string) error {
	bucket, path, err := splitBucketPath(objectURL)
	if err != nil {
		return err
	}
	client := s3go.New(&s3.session)
	_, err = client.DeleteObject(&s3go.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	return errors.Wrap(err, "deleting object")
}
