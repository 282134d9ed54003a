package types

import "fmt"

// Artifact locates a model artifact in object storage.
type Artifact struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// URL renders the artifact as an s3:// URL.
func (a Artifact) URL() string {
	return fmt.Sprintf("s3://%s/%s", a.Bucket, a.Key)
}

// Endpoint is a provisioned hosted inference endpoint.
type Endpoint struct {
	Name   string `json:"name"`
	ARN    string `json:"arn,omitempty"`
	Status string `json:"status,omitempty"`
}
