package spaces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DMarby/thumbs/internal/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Provider implements an S3 compatible (digitalocean spaces, minio) image storage
type Provider struct {
	spaces s3iface.S3API
	space  string
}

// New returns a new Provider instance, an empty endpoint selects the spaces endpoint for the region
func New(space, endpoint, region, accessKey, secretKey string, forcePathStyle bool) (*Provider, error) {
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", region)
	}

	spacesSession, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(forcePathStyle),
	})
	if err != nil {
		return nil, err
	}

	spaces := s3.New(spacesSession)

	// Make sure the space is reachable
	if _, err := spaces.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(space)}); err != nil {
		return nil, err
	}

	return NewWithClient(spaces, space), nil
}

// NewWithClient returns a new Provider instance using an existing S3 client
func NewWithClient(client s3iface.S3API, space string) *Provider {
	return &Provider{
		spaces: client,
		space:  space,
	}
}

// Get returns the image data for an identifier, which is used as the object key
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	object := s3.GetObjectInput{
		Bucket: aws.String(p.space),
		Key:    aws.String(strings.TrimPrefix(id, "/")),
	}

	output, err := p.spaces.GetObjectWithContext(ctx, &object)
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}
	defer output.Body.Close()

	buf := new(bytes.Buffer)
	_, err = io.Copy(buf, output.Body)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
