// Package hosting provisions managed inference endpoints on SageMaker.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/deploy"
	"inferd/pkg/types"
)

// VariantName is the single production variant every endpoint gets.
const VariantName = "AllTraffic"

// API is the subset of the SageMaker client used here.
type API interface {
	CreateModel(ctx context.Context, in *sagemaker.CreateModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error)
	CreateEndpointConfig(ctx context.Context, in *sagemaker.CreateEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error)
	CreateEndpoint(ctx context.Context, in *sagemaker.CreateEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error)
	sagemaker.DescribeEndpointAPIClient
}

// SageMaker deploys an EndpointDescriptor as model, endpoint config and
// endpoint, then waits for the endpoint to be InService.
type SageMaker struct {
	api         API
	region      string
	waitTimeout time.Duration
	log         zerolog.Logger
	waiterOpts  []func(*sagemaker.EndpointInServiceWaiterOptions)
}

// NewSageMaker wraps api. waitTimeout <= 0 means 30 minutes.
func NewSageMaker(api API, region string, waitTimeout time.Duration, log zerolog.Logger) *SageMaker {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Minute
	}
	return &SageMaker{api: api, region: region, waitTimeout: waitTimeout, log: log}
}

// NewSageMakerFromConfig builds the client from an AWS config.
func NewSageMakerFromConfig(cfg aws.Config, waitTimeout time.Duration, log zerolog.Logger) *SageMaker {
	return NewSageMaker(sagemaker.NewFromConfig(cfg), cfg.Region, waitTimeout, log)
}

func (s *SageMaker) Deploy(ctx context.Context, d deploy.EndpointDescriptor) (types.Endpoint, error) {
	image := d.ImageURI
	if image == "" {
		var err error
		image, err = ImageURI(s.region, d.Framework, d.InstanceType)
		if err != nil {
			return types.Endpoint{}, err
		}
	}

	s.log.Info().Str("model", d.ModelName).Str("image", image).Msg("creating model")
	if _, err := s.api.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(d.ModelName),
		ExecutionRoleArn: aws.String(d.RoleARN),
		PrimaryContainer: &smtypes.ContainerDefinition{
			Image:        aws.String(image),
			ModelDataUrl: aws.String(d.Artifact.URL()),
			Environment:  d.Env,
		},
	}); err != nil {
		return types.Endpoint{}, apiErr("create model "+d.ModelName, err)
	}

	count := d.InstanceCount
	if count <= 0 {
		count = 1
	}
	s.log.Info().Str("config", d.EndpointConfigName).Msg("creating endpoint config")
	if _, err := s.api.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(d.EndpointConfigName),
		ProductionVariants: []smtypes.ProductionVariant{{
			VariantName:          aws.String(VariantName),
			ModelName:            aws.String(d.ModelName),
			InstanceType:         smtypes.ProductionVariantInstanceType(d.InstanceType),
			InitialInstanceCount: aws.Int32(count),
			InitialVariantWeight: aws.Float32(1),
		}},
	}); err != nil {
		return types.Endpoint{}, apiErr("create endpoint config "+d.EndpointConfigName, err)
	}

	s.log.Info().Str("endpoint", d.EndpointName).Msg("creating endpoint")
	out, err := s.api.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(d.EndpointName),
		EndpointConfigName: aws.String(d.EndpointConfigName),
	})
	if err != nil {
		return types.Endpoint{}, apiErr("create endpoint "+d.EndpointName, err)
	}

	s.log.Info().Str("endpoint", d.EndpointName).Dur("timeout", s.waitTimeout).Msg("waiting for endpoint")
	w := sagemaker.NewEndpointInServiceWaiter(s.api, s.waiterOpts...)
	if err := w.Wait(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(d.EndpointName)}, s.waitTimeout); err != nil {
		return types.Endpoint{}, fmt.Errorf("wait for endpoint %s: %w%s", d.EndpointName, err, s.failureReason(ctx, d.EndpointName))
	}
	return types.Endpoint{
		Name:   d.EndpointName,
		ARN:    aws.ToString(out.EndpointArn),
		Status: string(smtypes.EndpointStatusInService),
	}, nil
}

// failureReason returns "; reason" from DescribeEndpoint, or "".
func (s *SageMaker) failureReason(ctx context.Context, name string) string {
	out, err := s.api.DescribeEndpoint(context.WithoutCancel(ctx), &sagemaker.DescribeEndpointInput{EndpointName: aws.String(name)})
	if err != nil || out.FailureReason == nil {
		return ""
	}
	return "; " + aws.ToString(out.FailureReason)
}

// apiErr prefixes err with op and, for service errors, the error code.
func apiErr(op string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return fmt.Errorf("%s: %s: %w", op, ae.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ecrAccount hosts the Hugging Face deep learning containers.
const ecrAccount = "763104351884"

// ImageURI resolves the Hugging Face PyTorch inference container for the
// framework versions. GPU instance families get the CUDA build.
func ImageURI(region string, fw config.Framework, instanceType string) (string, error) {
	if region == "" {
		return "", errors.New("no AWS region configured to resolve the inference image")
	}
	if fw.PyTorch == "" || fw.Transformers == "" || fw.Python == "" {
		return "", fmt.Errorf("incomplete framework versions: %+v", fw)
	}
	var tag string
	if gpuInstance(instanceType) {
		tag = fmt.Sprintf("%s-transformers%s-gpu-%s-%s-%s", fw.PyTorch, fw.Transformers, fw.Python, fw.CUDA, fw.OS)
	} else {
		tag = fmt.Sprintf("%s-transformers%s-cpu-%s-%s", fw.PyTorch, fw.Transformers, fw.Python, fw.OS)
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/huggingface-pytorch-inference:%s", ecrAccount, region, tag), nil
}

func gpuInstance(instanceType string) bool {
	family := strings.TrimPrefix(instanceType, "ml.")
	return strings.HasPrefix(family, "g") || strings.HasPrefix(family, "p")
}
