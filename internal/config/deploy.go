package config

import "time"

// Deploy holds parameters for deployctl. Defaults reproduce the reference
// deployment: a DeepSeek R1 distill on one ml.g4dn.xlarge.
type Deploy struct {
	Archive       string `json:"archive" yaml:"archive" toml:"archive"`
	Bucket        string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Key           string `json:"key" yaml:"key" toml:"key"`
	RoleARN       string `json:"role_arn" yaml:"role_arn" toml:"role_arn"`
	ModelID       string `json:"model_id" yaml:"model_id" toml:"model_id"`
	Task          string `json:"task" yaml:"task" toml:"task"`
	EndpointName  string `json:"endpoint_name" yaml:"endpoint_name" toml:"endpoint_name"`
	InstanceType  string `json:"instance_type" yaml:"instance_type" toml:"instance_type"`
	InstanceCount int32  `json:"instance_count" yaml:"instance_count" toml:"instance_count"`
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LedgerPath    string `json:"ledger_path" yaml:"ledger_path" toml:"ledger_path"`

	Framework Framework `json:"framework" yaml:"framework" toml:"framework"`

	// ImageURI overrides the inference container resolved from Framework.
	ImageURI    string   `json:"image_uri" yaml:"image_uri" toml:"image_uri"`
	WaitTimeout Duration `json:"wait_timeout" yaml:"wait_timeout" toml:"wait_timeout"`
}

// Framework pins the hosted runtime versions.
type Framework struct {
	Transformers string `json:"transformers" yaml:"transformers" toml:"transformers"`
	PyTorch      string `json:"pytorch" yaml:"pytorch" toml:"pytorch"`
	Python       string `json:"python" yaml:"python" toml:"python"`
	CUDA         string `json:"cuda" yaml:"cuda" toml:"cuda"`
	OS           string `json:"os" yaml:"os" toml:"os"`
}

// DefaultDeploy returns the built-in deployment defaults.
func DefaultDeploy() Deploy {
	return Deploy{
		Archive:       "model.tar.gz",
		Bucket:        "deepseek-models",
		Key:           "model.tar.gz",
		RoleARN:       "",
		ModelID:       "deepseek-ai/DeepSeek-R1-Distill-Qwen-1.5B",
		Task:          "text-generation",
		EndpointName:  "deepseek-endpoint",
		InstanceType:  "ml.g4dn.xlarge",
		InstanceCount: 1,
		LogLevel:      "info",
		LedgerPath:    "deployctl.sqlite",
		Framework: Framework{
			Transformers: "4.37.0",
			PyTorch:      "2.1.1",
			Python:       "py310",
			CUDA:         "cu118",
			OS:           "ubuntu20.04",
		},
		WaitTimeout: Duration(30 * time.Minute),
	}
}

func (c *Deploy) applyEnv() {
	c.Bucket = envStr("SAGEMAKER_BUCKET", c.Bucket)
	c.RoleARN = envStr("SAGEMAKER_ROLE_ARN", c.RoleARN)
	c.LedgerPath = envStr("DEPLOYCTL_LEDGER", c.LedgerPath)
	c.LogLevel = envStr("DEPLOYCTL_LOG_LEVEL", c.LogLevel)
}
