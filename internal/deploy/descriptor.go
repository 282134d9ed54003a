package deploy

import (
	"inferd/internal/config"
	"inferd/pkg/types"
)

// EndpointDescriptor describes the hosted model and the endpoint serving it.
type EndpointDescriptor struct {
	ModelName          string
	EndpointName       string
	EndpointConfigName string
	Artifact           types.Artifact
	RoleARN            string
	Framework          config.Framework
	InstanceType       string
	InstanceCount      int32
	Env                map[string]string
	// ImageURI overrides the container resolved from Framework.
	ImageURI string
}

// Environment variable names read by the hosted inference container.
const (
	EnvModelID = "HF_MODEL_ID"
	EnvTask    = "HF_TASK"
)

// NewDescriptor builds the descriptor for an uploaded artifact. suffix makes
// the model and endpoint config names unique per run; the endpoint name is
// taken as configured.
func NewDescriptor(cfg config.Deploy, artifact types.Artifact, suffix string) EndpointDescriptor {
	return EndpointDescriptor{
		ModelName:          cfg.EndpointName + "-" + suffix,
		EndpointName:       cfg.EndpointName,
		EndpointConfigName: cfg.EndpointName + "-" + suffix,
		Artifact:           artifact,
		RoleARN:            cfg.RoleARN,
		Framework:          cfg.Framework,
		InstanceType:       cfg.InstanceType,
		InstanceCount:      cfg.InstanceCount,
		Env: map[string]string{
			EnvModelID: cfg.ModelID,
			EnvTask:    cfg.Task,
		},
		ImageURI: cfg.ImageURI,
	}
}
